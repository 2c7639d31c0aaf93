package cli

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/changesync/internal/client/iocli"
	"github.com/iudanet/changesync/internal/client/storage"
	"github.com/iudanet/changesync/internal/client/sync"
)

// TokenEnv переменная окружения с токеном синхронизации
const TokenEnv = "CHANGESYNC_TOKEN"

// ErrEmptyToken токен не передан ни одним способом
var ErrEmptyToken = errors.New("sync token is required: use --token, " + TokenEnv + " or enter it at the prompt")

// Cli команды клиента поверх локального outbox и сервиса синхронизации
type Cli struct {
	io          iocli.IO
	outbox      storage.OutboxStorage
	metadata    storage.MetadataStorage
	syncService sync.Service
	getenv      func(string) string
	now         func() time.Time
	newID       func() string
}

// New creates a Cli
func New(io iocli.IO, outbox storage.OutboxStorage, metadata storage.MetadataStorage, syncService sync.Service) *Cli {
	return &Cli{
		io:          io,
		outbox:      outbox,
		metadata:    metadata,
		syncService: syncService,
		getenv:      os.Getenv,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// resolveToken reads the sync token with priority:
// 1. --token flag
// 2. CHANGESYNC_TOKEN environment variable
// 3. Interactive prompt (fallback)
func (c *Cli) resolveToken(flagValue string) (string, error) {
	if token := strings.TrimSpace(flagValue); token != "" {
		return token, nil
	}

	if token := strings.TrimSpace(c.getenv(TokenEnv)); token != "" {
		return token, nil
	}

	token, err := c.io.ReadSecret("Sync token: ")
	if err != nil {
		return "", errors.Join(ErrEmptyToken, err)
	}
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
