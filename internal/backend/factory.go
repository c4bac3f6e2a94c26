package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/sheets"
	gsheet "budgetbuddy/internal/sheets/google"
	"budgetbuddy/internal/sheets/memory"
	"budgetbuddy/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: log.OrDiscard(logger).WithComponent(log.ComponentBackend),
	}
}

// Create implements Factory.Create. The change feed is best effort: when
// the broker cannot be reached the resources are returned without it.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Resources, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	kv, err := f.createTokenStore(config)
	if err != nil {
		return nil, err
	}
	res := &Resources{TokenStore: kv}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", log.FieldError, err.Error())
		} else {
			res.Publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"routing_key", config.AMQPRoutingKey)
		}
	}

	res.Exporter, res.Preview, err = f.createExporter(ctx, config)
	if err != nil {
		f.closeAll(res)
		return nil, err
	}

	res.Cleanup = func() error { return f.closeAll(res) }
	return res, nil
}

func (f *DefaultFactory) createTokenStore(config Config) (storage.KV, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Debug("Initialized SQLite token store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Debug("Initialized memory token store")
		return storage.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createExporter(ctx context.Context, config Config) (sheets.Exporter, *memory.Store, error) {
	if config.GoogleSpreadsheetID == "" {
		store := memory.New()
		return store, store, nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		OAuth: gsheet.OAuthOptions{
			ClientJSON: config.GoogleOAuthClientJSON,
			ClientFile: config.GoogleOAuthClientFile,
			TokenFile:  config.GoogleOAuthTokenFile,
		},
	}, f.logger)
	if errors.Is(err, gsheet.ErrNoToken) {
		f.logger.Warn("Spreadsheet not authorized yet, exports will be printed", log.FieldError, err.Error())
		store := memory.New()
		return store, store, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter", "spreadsheet", config.GoogleSpreadsheetID)
	return client, nil, nil
}

func (f *DefaultFactory) closeAll(res *Resources) error {
	var result *multierror.Error
	if res.Publisher != nil {
		if err := res.Publisher.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close publisher: %w", err))
		}
	}
	if res.TokenStore != nil {
		if err := res.TokenStore.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close token store: %w", err))
		}
	}
	return result.ErrorOrNil()
}
