package sqlstore

import (
	"embed"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/lapomascherj/atmo-core/app/store"
	"github.com/lapomascherj/atmo-core/pkg/register"
	"github.com/lapomascherj/atmo-core/pkg/sqlstore"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

//go:embed migrations/*.sql
var migrationFiles embed.FS

var provider = &Provider{
	stores: &Stores{},
}

func GetProvider() *Provider {
	return provider
}

type Provider struct {
	*sqlstore.SqlProvider
	stores *Stores
}

type Stores struct {
	store.ChatSessionStore
	store.ChatMessageStore
	store.ParsedEntityStore
	store.ProjectStore
	store.TaskStore
	store.GoalStore
	store.MilestoneStore
	store.KnowledgeItemStore
	store.InsightStore
}

type RegisterKey struct{}

func MustSetup(m sqlstore.ConnectConfig, s ...sqlstore.ConnectConfig) func() *Provider {
	provider.SqlProvider = sqlstore.MustSetupProvider(m, s...)

	for _, f := range register.ResolveFuncHandlers[*Provider](RegisterKey{}) {
		f(provider)
	}

	return func() *Provider {
		return provider
	}
}

// Install applies the embedded migrations that have not run yet.
func (p *Provider) Install() error {
	if err := p.ensureMigrationTable(); err != nil {
		return err
	}

	files, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		if executed, err := p.isFileExecuted(file.Name()); err != nil {
			return err
		} else if executed {
			continue
		}

		sql, err := migrationFiles.ReadFile("migrations/" + file.Name())
		if err != nil {
			return err
		}

		if _, err = p.SqlProvider.GetMaster().Exec(string(sql)); err != nil {
			return err
		}

		if err = p.markFileExecuted(file.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) ensureMigrationTable() error {
	createTableSQL := `
CREATE TABLE IF NOT EXISTS atmo_schema_migrations (
    filename VARCHAR(255) PRIMARY KEY,
    executed_at BIGINT NOT NULL
);`
	_, err := p.SqlProvider.GetMaster().Exec(createTableSQL)
	return err
}

func (p *Provider) isFileExecuted(filename string) (bool, error) {
	var count int
	err := p.SqlProvider.GetReplica().Get(&count,
		"SELECT COUNT(*) FROM atmo_schema_migrations WHERE filename = $1", filename)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Provider) markFileExecuted(filename string) error {
	_, err := p.SqlProvider.GetMaster().Exec(
		"INSERT INTO atmo_schema_migrations (filename, executed_at) VALUES ($1, $2) ON CONFLICT (filename) DO NOTHING",
		filename, time.Now().Unix())
	return err
}

func (p *Provider) ChatSessionStore() store.ChatSessionStore {
	return p.stores.ChatSessionStore
}

func (p *Provider) ChatMessageStore() store.ChatMessageStore {
	return p.stores.ChatMessageStore
}

func (p *Provider) ParsedEntityStore() store.ParsedEntityStore {
	return p.stores.ParsedEntityStore
}

func (p *Provider) ProjectStore() store.ProjectStore {
	return p.stores.ProjectStore
}

func (p *Provider) TaskStore() store.TaskStore {
	return p.stores.TaskStore
}

func (p *Provider) GoalStore() store.GoalStore {
	return p.stores.GoalStore
}

func (p *Provider) MilestoneStore() store.MilestoneStore {
	return p.stores.MilestoneStore
}

func (p *Provider) KnowledgeItemStore() store.KnowledgeItemStore {
	return p.stores.KnowledgeItemStore
}

func (p *Provider) InsightStore() store.InsightStore {
	return p.stores.InsightStore
}
