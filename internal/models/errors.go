package models

import "errors"

var (
	// ErrNotFound запись не найдена в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrDownloadLimitReached месячный лимит скачиваний исчерпан.
	ErrDownloadLimitReached = errors.New("download limit reached")
	// ErrUnknownConsentType тип согласия отсутствует в каталоге.
	ErrUnknownConsentType = errors.New("unknown consent type")
	// ErrConsentRequired обязательное согласие нельзя отозвать.
	ErrConsentRequired = errors.New("consent is required and cannot be withdrawn")
	// ErrUnsupportedFormat неподдерживаемый формат экспорта.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrInvalidSignature подпись вебхука не прошла проверку.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrNoSubscription у пользователя нет подписки у платёжного провайдера.
	ErrNoSubscription = errors.New("no provider subscription")
	// ErrAlreadySubscribed у пользователя уже есть действующая подписка.
	ErrAlreadySubscribed = errors.New("subscription already active")
)
