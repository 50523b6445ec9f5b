package cli

import (
	"context"
	"log"
	"net/http"
	"time"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/config"
	"confetti-quiz/internal/domain"
	"confetti-quiz/internal/infra/memory"
	pgloader "confetti-quiz/internal/infra/postgres"
	inforedis "confetti-quiz/internal/infra/redis"
	"confetti-quiz/internal/infra/sqlite"
	"confetti-quiz/internal/resolver"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// deps holds the collaborators built from config. close releases them.
type deps struct {
	cfg       config.Config
	store     app.SnapshotStore
	questions app.QuestionRepository
	results   resolver.ResultsMap
	redis     *redis.Client
	pool      *pgxpool.Pool
	// durable is false when progress only lives in this process.
	durable bool
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps wires storage. preferSQLite selects the sqlite snapshot store when configured,
// which is what the single-user terminal widget wants.
func buildDeps(ctx context.Context, cfg config.Config, preferSQLite bool) (*deps, error) {
	d := &deps{cfg: cfg}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = d.redis.Close() })
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.pool = pool
		d.closers = append(d.closers, pool.Close)
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionSets())
	if d.pool != nil {
		loader = pgloader.NewQuestionLoader(d.pool)
	} else {
		log.Printf("postgres not configured, using built-in question sets")
	}
	questionsTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if d.redis != nil {
		d.questions = inforedis.NewQuestionRepository(d.redis, loader, questionsTTL)
	} else {
		d.questions = memory.NewQuestionRepository(loader, questionsTTL)
	}

	switch {
	case preferSQLite && cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			d.close()
			return nil, err
		}
		d.store = store
		d.durable = true
		d.closers = append(d.closers, func() { _ = store.Close() })
	case d.redis != nil:
		d.store = inforedis.NewSnapshotStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 30*24*time.Hour))
		d.durable = true
	default:
		d.store = memory.NewSnapshotStore()
	}

	if d.redis != nil {
		d.results = inforedis.NewResultsMap(d.redis)
	} else {
		d.results = memory.NewResultsMap(nil)
	}
	return d, nil
}

func (d *deps) options() (app.Options, error) {
	policy, err := app.ParseNavigationPolicy(d.cfg.Quiz.Gating)
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		Policy:         policy,
		Autoload:       d.cfg.Quiz.Autoload,
		ResolveTimeout: config.TTLDuration(d.cfg.Manifest.Timeout, 5*time.Second),
	}, nil
}

// resolverFor builds a resolver whose manifest tier is anchored at base.
func (d *deps) resolverFor(base string) (app.ResultResolver, error) {
	timeout := config.TTLDuration(d.cfg.Manifest.Timeout, 5*time.Second)
	return resolver.New(resolver.Options{
		BaseURL:      base,
		ManifestPath: d.cfg.Manifest.Path,
		Client:       &http.Client{Timeout: timeout},
		Results:      d.results,
	})
}

func (d *deps) service() (*app.QuizService, error) {
	opts, err := d.options()
	if err != nil {
		return nil, err
	}
	res, err := d.resolverFor(d.cfg.Manifest.BaseURL)
	if err != nil {
		return nil, err
	}
	return app.NewQuizService(d.store, d.questions, res, opts), nil
}

func defaultPath(cfg config.Config, path string) string {
	if path != "" {
		return path
	}
	if cfg.Quiz.DefaultPath != "" {
		return cfg.Quiz.DefaultPath
	}
	return domain.DefaultPath
}

// sampleQuestionSets is the built-in catalogue used when no database is configured.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"tata-surya": {
			{Text: "Apa nama planet terbesar di tata surya kita?", Answer: "jupiter"},
			{Text: "Berapa jumlah planet dalam tata surya?", Answer: "delapan"},
			{Text: "Planet apa yang paling dekat dengan matahari?", Answer: "merkurius"},
			{Text: "Bulan adalah satelit alami planet apa?", Answer: "bumi"},
			{Text: "Apa nama bintang di pusat tata surya kita?", Answer: "matahari"},
			{Text: "Planet mana yang memiliki cincin?", Answer: "saturnus"},
			{Text: "Siapakah presiden pertama Indonesia?", Answer: "soekarno"},
		},
	}
}
