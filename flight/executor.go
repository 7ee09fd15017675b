// Package flight implements an executor.Executor over Arrow Flight SQL.
//
// Apache Doris exposes Arrow Flight SQL on the frontend (arrow_flight_sql_port).
// The executor renders each request to SQL, runs it with a Flight SQL
// Execute call and streams every returned endpoint with DoGet, so results
// arrive as Arrow batches without row-by-row conversion.
package flight

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/flight/flightsql"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/hugr-lab/doris-vector-go/auth"
	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/sqlgen"
)

// reuseConnectionURI marks an endpoint served by the connection that
// returned it.
const reuseConnectionURI = "arrow-flight-reuse-connection://?"

// Config contains configuration for the Flight SQL executor.
type Config struct {
	// Address is the Flight SQL endpoint (e.g., "doris-fe:8070").
	// REQUIRED: MUST be non-empty.
	Address string

	// Username and Password authenticate with a basic-auth handshake.
	// OPTIONAL: If Username is empty, no handshake is made.
	Username string
	Password string

	// Token is a static bearer token sent on every call.
	// OPTIONAL: Ignored when Username is set.
	Token string

	// TLS enables transport security.
	// OPTIONAL: If nil, the connection is plaintext.
	TLS *tls.Config

	// Dialect renders requests into SQL.
	// OPTIONAL: Uses sqlgen.Doris if nil.
	Dialect sqlgen.Dialect

	// IgnoreLocations fetches every endpoint through Address even when the
	// backend advertises other locations (e.g., unreachable BE hosts).
	// OPTIONAL: Defaults to false.
	IgnoreLocations bool

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	MaxMessageSize int

	// DialOptions are appended to the executor's own dial options.
	// OPTIONAL.
	DialOptions []grpc.DialOption

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Executor runs vector searches over Flight SQL.
// Safe for concurrent use.
type Executor struct {
	config    Config
	client    *flightsql.Client
	tokens    *auth.TokenCache
	dialect   sqlgen.Dialect
	allocator memory.Allocator
	logger    *slog.Logger

	authMu sync.Mutex

	locMu     sync.Mutex
	locations map[string]flight.Client
}

var _ executor.Executor = (*Executor)(nil)

// NewExecutor creates a Flight SQL executor.
// The connection is established lazily; credentials are checked on first use.
func NewExecutor(config Config) (*Executor, error) {
	if config.Address == "" {
		return nil, ErrNoAddress
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialect := config.Dialect
	if dialect == nil {
		dialect = sqlgen.Doris{}
	}

	tokens := auth.NewTokenCache(config.TLS != nil)
	if config.Username == "" && config.Token != "" {
		tokens = auth.Bearer(config.Token, config.TLS != nil)
	}

	e := &Executor{
		config:    config,
		tokens:    tokens,
		dialect:   dialect,
		allocator: allocator,
		logger:    logger,
		locations: make(map[string]flight.Client),
	}

	client, err := flightsql.NewClient(config.Address, nil, nil, e.dialOptions(config.TLS)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create flight sql client: %w", err)
	}
	client.Alloc = allocator
	e.client = client

	return e, nil
}

func (e *Executor) dialOptions(tlsConfig *tls.Config) []grpc.DialOption {
	var opts []grpc.DialOption
	if tlsConfig != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, grpc.WithPerRPCCredentials(e.tokens))

	if e.config.MaxMessageSize > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(e.config.MaxMessageSize),
			grpc.MaxCallSendMsgSize(e.config.MaxMessageSize),
		))
	}

	return append(opts, e.config.DialOptions...)
}

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (array.RecordReader, error) {
	stmt, err := sqlgen.Build(e.dialect, req)
	if err != nil {
		if errors.Is(err, sqlgen.ErrInvalidSessionName) {
			return nil, fmt.Errorf("%w: %v", executor.ErrSessionRejected, err)
		}
		return nil, err
	}

	if err := e.authenticate(ctx); err != nil {
		return nil, err
	}

	ctx = outgoingContext(ctx, req.QueryID)
	logger := e.logger.With("query_id", req.QueryID)
	logger.Debug("Executing Flight SQL statement", "dialect", e.dialect.Name(), "sql", stmt.Query)

	for _, s := range stmt.Setup {
		if _, err := e.client.ExecuteUpdate(ctx, s); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", executor.ErrSessionRejected, s, e.mapError(ctx, err))
		}
	}
	if len(stmt.Teardown) > 0 {
		defer e.teardown(context.WithoutCancel(ctx), logger, stmt.Teardown)
	}

	info, err := e.client.Execute(ctx, stmt.Query)
	if err != nil {
		return nil, e.mapError(ctx, err)
	}

	return e.fetch(ctx, info)
}

func (e *Executor) teardown(ctx context.Context, logger *slog.Logger, statements []string) {
	for _, s := range statements {
		if _, err := e.client.ExecuteUpdate(ctx, s); err != nil {
			logger.Warn("Failed to reset session parameter", "sql", s, "error", err)
		}
	}
}

// authenticate performs the basic-auth handshake once and caches the token.
func (e *Executor) authenticate(ctx context.Context) error {
	if e.config.Username == "" {
		return nil
	}

	e.authMu.Lock()
	defer e.authMu.Unlock()

	if e.tokens.Token() != "" {
		return nil
	}

	authCtx, err := e.client.Client.AuthenticateBasicToken(ctx, e.config.Username, e.config.Password)
	if err != nil {
		return fmt.Errorf("flight sql handshake failed: %w", e.mapError(ctx, err))
	}

	md, _ := metadata.FromOutgoingContext(authCtx)
	values := md.Get(auth.HeaderAuthorization)
	if len(values) == 0 {
		return fmt.Errorf("flight sql handshake returned no token")
	}
	token, err := auth.TokenFromAuthorizationHeader(values[0])
	if err != nil {
		return fmt.Errorf("flight sql handshake: %w", err)
	}

	e.tokens.Set(token)
	e.logger.Debug("Flight SQL session authenticated", "user", e.config.Username)
	return nil
}

// fetch reads every endpoint in order and returns the combined batches.
func (e *Executor) fetch(ctx context.Context, info *flight.FlightInfo) (array.RecordReader, error) {
	var (
		schema  *arrow.Schema
		records []arrow.Record
	)
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	for i, ep := range info.GetEndpoint() {
		rdr, err := e.doGet(ctx, ep)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, e.mapError(ctx, err))
		}

		if schema == nil {
			schema = rdr.Schema()
		}
		for rdr.Next() {
			rec := rdr.Record()
			rec.Retain()
			records = append(records, rec)
		}
		err = rdr.Err()
		rdr.Release()
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, e.mapError(ctx, err))
		}
	}

	if schema == nil {
		s, err := flight.DeserializeSchema(info.GetSchema(), e.allocator)
		if err != nil {
			return nil, fmt.Errorf("failed to decode result schema: %w", err)
		}
		schema = s
	}

	return array.NewRecordReader(schema, records)
}

func (e *Executor) doGet(ctx context.Context, ep *flight.FlightEndpoint) (*flight.Reader, error) {
	uri := ""
	if locs := ep.GetLocation(); len(locs) > 0 {
		uri = locs[0].GetUri()
	}
	if e.config.IgnoreLocations || uri == "" || uri == reuseConnectionURI {
		return e.client.DoGet(ctx, ep.GetTicket())
	}

	client, err := e.locationClient(uri)
	if err != nil {
		return nil, err
	}
	stream, err := client.DoGet(ctx, ep.GetTicket())
	if err != nil {
		return nil, err
	}
	return flight.NewRecordReader(stream, ipc.WithAllocator(e.allocator))
}

// locationClient returns a cached client for an endpoint location URI
// such as "grpc://be-1:8050" or "grpc+tls://be-1:8050".
func (e *Executor) locationClient(uri string) (flight.Client, error) {
	e.locMu.Lock()
	defer e.locMu.Unlock()

	if c, ok := e.locations[uri]; ok {
		return c, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint location %q: %w", uri, err)
	}

	var tlsConfig *tls.Config
	switch u.Scheme {
	case "grpc", "grpc+tcp":
	case "grpc+tls":
		tlsConfig = e.config.TLS
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
	default:
		return nil, fmt.Errorf("unsupported endpoint location scheme %q", u.Scheme)
	}

	c, err := flight.NewClientWithMiddleware(u.Host, nil, nil, e.dialOptions(tlsConfig)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", uri, err)
	}
	e.locations[uri] = c
	e.logger.Debug("Opened endpoint location client", "location", uri)
	return c, nil
}

func (e *Executor) mapError(ctx context.Context, err error) error {
	err = mapError(ctx, err)
	if errors.Is(err, ErrUnauthenticated) && e.config.Username != "" {
		e.tokens.Clear()
	}
	return err
}

// Close closes the connection and every endpoint location client.
func (e *Executor) Close() error {
	e.locMu.Lock()
	defer e.locMu.Unlock()

	var errs []error
	for uri, c := range e.locations {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(e.locations, uri)
	}
	if err := e.client.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
