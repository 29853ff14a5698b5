package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fonoapp/internal/models"
	privacyservice "github.com/magabrotheeeer/fonoapp/internal/services/privacy"
	retentionservice "github.com/magabrotheeeer/fonoapp/internal/services/retention"
)

type RetentionRunnerMock struct {
	mock.Mock
}

func (m *RetentionRunnerMock) Policies() []models.DataRetentionPolicy {
	args := m.Called()
	return args.Get(0).([]models.DataRetentionPolicy)
}

func (m *RetentionRunnerMock) Apply(ctx context.Context, now time.Time, dryRun bool) (*retentionservice.Summary, error) {
	args := m.Called(ctx, now, dryRun)
	if s := args.Get(0); s != nil {
		return s.(*retentionservice.Summary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RetentionRunnerMock) Logs(ctx context.Context, limit int) ([]*models.DataRetentionLog, error) {
	args := m.Called(ctx, limit)
	if l := args.Get(0); l != nil {
		return l.([]*models.DataRetentionLog), args.Error(1)
	}
	return nil, args.Error(1)
}

type PrivacyRunnerMock struct {
	mock.Mock
}

func (m *PrivacyRunnerMock) Export(ctx context.Context, userUID, format string) (*privacyservice.Document, error) {
	args := m.Called(ctx, userUID, format)
	if d := args.Get(0); d != nil {
		return d.(*privacyservice.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PrivacyRunnerMock) Delete(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

var fixedNow = time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)

func runCommand(t *testing.T, b *Backend, connectErr error, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	closed := false
	b.Close = func() { closed = true }

	connector := func(context.Context, *slog.Logger) (*Backend, error) {
		if connectErr != nil {
			return nil, connectErr
		}
		return b, nil
	}
	r := &runner{out: &out, connect: connector, now: func() time.Time { return fixedNow }}
	root := r.rootCmd()
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})

	err := root.ExecuteContext(context.Background())
	if connectErr == nil && err == nil {
		assert.True(t, closed, "backend must be closed")
	}
	return out.String(), err
}

func TestRetentionPolicies(t *testing.T) {
	retention := new(RetentionRunnerMock)
	retention.On("Policies").Return([]models.DataRetentionPolicy{
		{DataCategory: "download_history", RetentionDays: 365, Action: models.RetentionDelete, LegalBasis: "art. 16"},
	})

	out, err := runCommand(t, &Backend{Retention: retention}, nil, "retention", "policies")
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "download_history")
	assert.Contains(t, out, "365")
	retention.AssertExpectations(t)
}

func TestRetentionApply(t *testing.T) {
	summary := &retentionservice.Summary{
		ExecutedAt: fixedNow,
		DryRun:     true,
		Results: []retentionservice.Result{{
			Policy:  models.DataRetentionPolicy{DataCategory: "inactive_accounts", Action: models.RetentionAnonymize},
			Cutoff:  fixedNow.AddDate(0, 0, -730),
			Records: 4,
			Status:  models.RetentionStatusDryRun,
		}},
	}

	tests := []struct {
		name     string
		args     []string
		dryRun   bool
		applyErr error
		wantCode int
	}{
		{name: "dry run", args: []string{"retention", "apply", "--dry-run"}, dryRun: true},
		{name: "apply", args: []string{"retention", "apply"}, dryRun: false},
		{name: "partial failure", args: []string{"retention", "apply"}, applyErr: errors.New("timeout"), wantCode: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retention := new(RetentionRunnerMock)
			retention.On("Apply", mock.Anything, fixedNow, tt.dryRun).Return(summary, tt.applyErr)

			out, err := runCommand(t, &Backend{Retention: retention}, nil, tt.args...)
			assert.Contains(t, out, "inactive_accounts")
			assert.Contains(t, out, "2023-03-11")
			if tt.wantCode != 0 {
				var ee *exitErr
				require.ErrorAs(t, err, &ee)
				assert.Equal(t, tt.wantCode, ee.code)
			} else {
				require.NoError(t, err)
			}
			retention.AssertExpectations(t)
		})
	}
}

func TestRetentionLogs(t *testing.T) {
	retention := new(RetentionRunnerMock)
	retention.On("Logs", mock.Anything, 5).Return([]*models.DataRetentionLog{
		{DataCategory: "download_history", Action: models.RetentionDelete, RecordsAffected: 17,
			Status: models.RetentionStatusSuccess, ExecutedAt: fixedNow},
	}, nil)

	out, err := runCommand(t, &Backend{Retention: retention}, nil, "retention", "logs", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "17")
	assert.Contains(t, out, "2025-03-10T03:00:00Z")
	retention.AssertExpectations(t)
}

func TestExport(t *testing.T) {
	doc := &privacyservice.Document{
		Format:      "csv",
		ContentType: "text/csv",
		FileName:    "fonoapp-dados.csv",
		Body:        []byte("section,field,value\nprofile,email,ana@example.com\n"),
	}

	t.Run("stdout", func(t *testing.T) {
		privacy := new(PrivacyRunnerMock)
		privacy.On("Export", mock.Anything, "uid-1", "csv").Return(doc, nil)

		out, err := runCommand(t, &Backend{Privacy: privacy}, nil, "export", "--user", "uid-1", "--format", "csv")
		require.NoError(t, err)
		assert.Equal(t, string(doc.Body), out)
	})

	t.Run("file", func(t *testing.T) {
		privacy := new(PrivacyRunnerMock)
		privacy.On("Export", mock.Anything, "uid-1", "csv").Return(doc, nil)
		path := filepath.Join(t.TempDir(), "export.csv")

		out, err := runCommand(t, &Backend{Privacy: privacy}, nil,
			"export", "--user", "uid-1", "--format", "csv", "--out", path)
		require.NoError(t, err)
		assert.Contains(t, out, `"bytes":`)

		written, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, doc.Body, written)
	})

	t.Run("unknown user", func(t *testing.T) {
		privacy := new(PrivacyRunnerMock)
		privacy.On("Export", mock.Anything, "missing", "json").Return(nil, models.ErrNotFound)

		_, err := runCommand(t, &Backend{Privacy: privacy}, nil, "export", "--user", "missing")
		var ee *exitErr
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 3, ee.code)
	})

	t.Run("user flag is required", func(t *testing.T) {
		_, err := runCommand(t, &Backend{}, nil, "export")
		require.Error(t, err)
	})
}

func TestDelete(t *testing.T) {
	t.Run("requires confirmation", func(t *testing.T) {
		privacy := new(PrivacyRunnerMock)

		_, err := runCommand(t, &Backend{Privacy: privacy}, nil, "delete", "--user", "uid-1")
		var ee *exitErr
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 1, ee.code)
		privacy.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("deletes", func(t *testing.T) {
		privacy := new(PrivacyRunnerMock)
		privacy.On("Delete", mock.Anything, "uid-1").Return(nil)

		out, err := runCommand(t, &Backend{Privacy: privacy}, nil, "delete", "--user", "uid-1", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "user uid-1 deleted")
		privacy.AssertExpectations(t)
	})
}

func TestConnectFailure(t *testing.T) {
	_, err := runCommand(t, &Backend{}, errors.New("connection refused"), "retention", "policies")
	var ee *exitErr
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.code)
}
