package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/brightmesh/querycore/internal/apperror"
	"github.com/brightmesh/querycore/internal/connector"
	"github.com/brightmesh/querycore/internal/crypto"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

// ErrUnsupportedKind is returned when a datasource's Kind has no
// connector implementation to execute queries against it.
var ErrUnsupportedKind = errors.New("datasource kind has no connector implementation")

// DatasourceUsecase owns the encrypt-before-store / decrypt-before-connect
// boundary: EncryptedConnectionString never leaves this package decrypted.
type DatasourceUsecase struct {
	repo   repository.DatasourceRepository
	crypto *crypto.Manager
	dialer func(ctx context.Context, kind domain.DatasourceKind, connStr string) (connector.Connector, error)
}

func NewDatasourceUsecase(repo repository.DatasourceRepository, cryptoManager *crypto.Manager) *DatasourceUsecase {
	u := &DatasourceUsecase{repo: repo, crypto: cryptoManager}
	u.dialer = u.dial
	return u
}

func (u *DatasourceUsecase) dial(ctx context.Context, kind domain.DatasourceKind, connStr string) (connector.Connector, error) {
	switch kind {
	case domain.DatasourceKindPostgres:
		return connector.NewPostgresConnector(ctx, connStr)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func (u *DatasourceUsecase) Create(ctx context.Context, orgID, name string, kind domain.DatasourceKind, connectionString string, maxConnections int) (*domain.Datasource, error) {
	encrypted, err := u.crypto.Encrypt(connectionString)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("encrypting connection string: %w", err))
	}

	ds, err := u.repo.Create(ctx, &domain.Datasource{
		OrganizationID:            orgID,
		Name:                      name,
		Kind:                      kind,
		EncryptedConnectionString: encrypted,
		MaxConnections:            maxConnections,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, apperror.Conflict("a datasource with this name already exists")
		}
		return nil, apperror.Database(err)
	}
	return ds, nil
}

func (u *DatasourceUsecase) Get(ctx context.Context, orgID, id string) (*domain.Datasource, error) {
	ds, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("datasource not found")
		}
		return nil, apperror.Database(err)
	}
	return ds, nil
}

func (u *DatasourceUsecase) List(ctx context.Context, orgID string) ([]*domain.Datasource, error) {
	list, err := u.repo.List(ctx, orgID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return list, nil
}

func (u *DatasourceUsecase) Update(ctx context.Context, orgID, id, name, connectionString string, maxConnections int) (*domain.Datasource, error) {
	ds, err := u.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("datasource not found")
		}
		return nil, apperror.Database(err)
	}

	ds.Name = name
	ds.MaxConnections = maxConnections
	if connectionString != "" {
		encrypted, err := u.crypto.Encrypt(connectionString)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("encrypting connection string: %w", err))
		}
		ds.EncryptedConnectionString = encrypted
	}

	updated, err := u.repo.Update(ctx, ds)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return updated, nil
}

func (u *DatasourceUsecase) Delete(ctx context.Context, orgID, id string) error {
	if err := u.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperror.NotFound("datasource not found")
		}
		return apperror.Database(err)
	}
	return nil
}

// TestConnection decrypts the stored connection string, dials the
// datasource, and reports latency or the connection error — never the
// decrypted connection string itself.
func (u *DatasourceUsecase) TestConnection(ctx context.Context, orgID, id string) (*domain.ConnectionTestResult, error) {
	ds, err := u.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	connStr, err := u.crypto.Decrypt(ds.EncryptedConnectionString)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("decrypting connection string: %w", err))
	}

	conn, err := u.dialer(ctx, ds.Kind, connStr)
	if err != nil {
		return &domain.ConnectionTestResult{OK: false, Error: "connection failed"}, nil
	}
	defer conn.Close()

	latency, err := conn.TestConnection(ctx)
	if err != nil {
		return &domain.ConnectionTestResult{OK: false, Error: "connection failed"}, nil
	}

	return &domain.ConnectionTestResult{OK: true, LatencyMillis: float64(latency.Microseconds()) / 1000}, nil
}

// GetSchema decrypts the stored connection string, dials the datasource,
// and introspects its tables and columns.
func (u *DatasourceUsecase) GetSchema(ctx context.Context, orgID, id string) ([]domain.TableSchema, error) {
	ds, err := u.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	connStr, err := u.crypto.Decrypt(ds.EncryptedConnectionString)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("decrypting connection string: %w", err))
	}

	conn, err := u.dialer(ctx, ds.Kind, connStr)
	if err != nil {
		return nil, apperror.Database(err)
	}
	defer conn.Close()

	schema, err := conn.GetSchema(ctx)
	if err != nil {
		return nil, apperror.QueryError(fmt.Sprintf("failed to introspect schema: %v", err))
	}

	out := make([]domain.TableSchema, len(schema))
	for i, t := range schema {
		cols := make([]domain.ColumnSchema, len(t.Columns))
		for j, c := range t.Columns {
			cols[j] = domain.ColumnSchema{Name: c.Name, DataType: c.DataType, IsNullable: c.IsNullable}
		}
		out[i] = domain.TableSchema{Schema: t.Schema, Name: t.Name, Columns: cols}
	}
	return out, nil
}
