package privacy

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// EncodeCSV раскладывает выгрузку в строки section,record,field,value.
// Для одиночных разделов record равен 0, для списков это номер элемента.
func EncodeCSV(export *models.UserDataExport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"section", "record", "field", "value"}); err != nil {
		return nil, err
	}

	sections := []struct {
		name  string
		value any
	}{
		{"profile", export.Profile},
		{"subscription", export.Subscription},
		{"download_limit", export.DownloadLimit},
		{"downloads", export.Downloads},
		{"consents", export.Consents},
		{"consent_history", export.ConsentHistory},
		{"privacy_requests", export.PrivacyRequests},
	}
	for _, sec := range sections {
		records, err := toRecords(sec.value)
		if err != nil {
			return nil, err
		}
		for i, rec := range records {
			keys := make([]string, 0, len(rec))
			for k := range rec {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if err := w.Write([]string{sec.name, strconv.Itoa(i), k, formatValue(rec[k])}); err != nil {
					return nil, err
				}
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toRecords(v any) ([]map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	switch t := decoded.(type) {
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, nil
	default:
		return nil, nil
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
