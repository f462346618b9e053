// seed inserts a demo organization, user, datasource, query, and schedule
// into the local dev database so the API and runner have something to
// serve and execute without a frontend.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/brightmesh/querycore/config"
	"github.com/brightmesh/querycore/internal/crypto"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/infrastructure/postgres"
)

const (
	seedOrgSlug   = "acme-dev"
	seedUserEmail = "dev@acme-dev.local"
	seedPassword  = "supersecret1"
	seedDSName    = "local-postgres"
	seedQueryName = "daily-signups"
	seedCronExpr  = "0 6 * * *"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	cryptoManager, err := crypto.NewManager(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("crypto: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	orgs := postgres.NewOrganizationRepository(pool)
	users := postgres.NewUserRepository(pool)
	datasources := postgres.NewDatasourceRepository(pool)
	queries := postgres.NewQueryRepository(pool)
	schedules := postgres.NewScheduleRepository(pool, logger)

	org, err := orgs.Create(ctx, &domain.Organization{Name: "Acme Dev", Slug: seedOrgSlug})
	if err != nil {
		log.Fatalf("create organization: %v", err)
	}
	log.Printf("organization: %s (%s)", org.ID, org.Slug)

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	user, err := users.Create(ctx, &domain.User{
		OrganizationID: org.ID,
		Email:          seedUserEmail,
		PasswordHash:   string(hash),
		Role:           domain.RoleOwner,
	})
	if err != nil {
		log.Fatalf("create user: %v", err)
	}
	log.Printf("user: %s (%s)", user.ID, user.Email)

	connStr := os.Getenv("SEED_DATASOURCE_URL")
	if connStr == "" {
		connStr = cfg.DatabaseURL
	}
	encrypted, err := cryptoManager.Encrypt(connStr)
	if err != nil {
		log.Fatalf("encrypt connection string: %v", err)
	}
	ds, err := datasources.Create(ctx, &domain.Datasource{
		OrganizationID:             org.ID,
		Name:                       seedDSName,
		Kind:                       domain.DatasourceKindPostgres,
		EncryptedConnectionString:  encrypted,
		MaxConnections:             5,
	})
	if err != nil {
		log.Fatalf("create datasource: %v", err)
	}
	log.Printf("datasource: %s (%s)", ds.ID, ds.Name)

	q, err := queries.Create(ctx, &domain.Query{
		OrganizationID: org.ID,
		DatasourceID:   ds.ID,
		Name:           seedQueryName,
		SQL:            "SELECT date_trunc('day', created_at) AS day, count(*) AS signups FROM users WHERE organization_id = $org_id GROUP BY 1 ORDER BY 1 DESC LIMIT $row_limit",
		Parameters: []domain.ParamDef{
			{Name: "org_id", Type: domain.ParamTypeString, Required: true, Default: org.ID},
			{Name: "row_limit", Type: domain.ParamTypeNumber, Required: false, Default: float64(30)},
		},
		MaxRows:        cfg.DefaultMaxRows,
		TimeoutSeconds: cfg.DefaultQueryTimeoutSeconds,
		CreatedBy:      user.ID,
	})
	if err != nil {
		log.Fatalf("create query: %v", err)
	}
	log.Printf("query: %s (%s)", q.ID, q.Name)

	sched, err := schedules.Create(ctx, &domain.Schedule{
		OrganizationID:  org.ID,
		QueryID:         q.ID,
		Name:            "daily-signups-0600",
		CronExpr:        seedCronExpr,
		NotifyOnFailure: true,
		NextRunAt:       time.Now().Add(time.Minute),
		CreatedBy:       user.ID,
	})
	if err != nil {
		log.Fatalf("create schedule: %v", err)
	}
	log.Printf("schedule: %s (next run %s)", sched.ID, sched.NextRunAt.Format(time.RFC3339))

	log.Println()
	log.Println("seed complete. To test:")
	log.Printf("  curl -s -X POST http://localhost:8080/auth/login -d '{\"email\":%q,\"password\":%q}'\n", seedUserEmail, seedPassword)
	log.Printf("  curl -s http://localhost:8080/queries/%s -H \"Authorization: Bearer $JWT\"\n", q.ID)
	log.Println("  the scheduler will fire the schedule once its next_run_at elapses; the runner executes the resulting run.")
}
