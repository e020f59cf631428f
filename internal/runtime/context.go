// Package runtime builds and owns the wired application context: the
// datastore, the prediction client and every engine component, constructed
// once from Settings and shared by the CLI commands.
package runtime

import (
	"github.com/fieldguide/fieldguide-go/internal/catalog"
	"github.com/fieldguide/fieldguide-go/internal/collection"
	"github.com/fieldguide/fieldguide-go/internal/conf"
	"github.com/fieldguide/fieldguide-go/internal/datastore"
	"github.com/fieldguide/fieldguide-go/internal/describe"
	"github.com/fieldguide/fieldguide-go/internal/engine"
	"github.com/fieldguide/fieldguide-go/internal/events"
	"github.com/fieldguide/fieldguide-go/internal/predict"
	"github.com/fieldguide/fieldguide-go/internal/session"
)

// Context carries the wired components through the command tree.
type Context struct {
	Settings *conf.Settings
	Store    datastore.Interface
	Client   *predict.Client
	Catalog  *catalog.Cache
	Sessions *session.Store
	Ledger   *collection.Ledger
	Notifier *events.UnlockNotifier
	Engine   *engine.Engine
	Describe *describe.Session
}

// Build constructs the full component graph from settings.
func Build(settings *conf.Settings) (*Context, error) {
	store, err := datastore.NewSQLiteStore(settings.Datastore.Path)
	if err != nil {
		return nil, err
	}

	client, err := predict.NewClient(predict.Config{
		BaseURL:       settings.Service.BaseURL,
		Timeout:       settings.Service.Timeout,
		ImageCacheTTL: settings.Service.ImageCacheTTL,
		Debug:         settings.Debug,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	notifier := events.NewUnlockNotifier()
	ledger, err := collection.NewLedger(store, notifier)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sessions, err := session.NewStore(store, session.Config{
		HistoryCapSingle: settings.Session.HistoryCapSingle,
		HistoryCapBatch:  settings.Session.HistoryCapBatch,
	}, session.DataURIEncoder)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Context{
		Settings: settings,
		Store:    store,
		Client:   client,
		Catalog: catalog.New(store, client, catalog.Config{
			TTL:           settings.Service.CatalogTTL,
			SchemaVersion: settings.Service.CatalogSchemaVer,
		}),
		Sessions: sessions,
		Ledger:   ledger,
		Notifier: notifier,
		Engine:   engine.New(client, sessions, ledger),
		Describe: describe.NewSession(client),
	}, nil
}

// Close releases the context's resources.
func (c *Context) Close() error {
	return c.Store.Close()
}
