package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/robbyt/go-supervisor/supervisor"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/transferflow-backend/internal/adapter/grpc/transferv1"
)

var _ supervisor.Runnable = (*Runner)(nil)

// Runner serves the TransferService over gRPC under the supervisor
type Runner struct {
	logger     *slog.Logger
	listenAddr string
	listener   net.Listener
	apiToken   string
	service    transferv1.TransferServiceServer

	ctx    context.Context
	cancel context.CancelFunc
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger of the runner
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithListener serves on an existing listener instead of listening on the configured address
func WithListener(lis net.Listener) RunnerOption {
	return func(r *Runner) {
		r.listener = lis
	}
}

// NewRunner creates a Runner serving service on listenAddr; every call must carry apiToken
func NewRunner(listenAddr, apiToken string, service transferv1.TransferServiceServer, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		logger:     slog.Default(),
		listenAddr: listenAddr,
		apiToken:   apiToken,
		service:    service,
	}
	for _, opt := range opts {
		opt(r)
	}

	if service == nil {
		return nil, errors.New("transfer service is required")
	}
	if apiToken == "" {
		return nil, errors.New("api token is required")
	}
	if r.listenAddr == "" && r.listener == nil {
		return nil, errors.New("a listen address or a listener must be provided")
	}

	r.logger = r.logger.WithGroup("grpc")
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

func (r *Runner) String() string {
	return "grpc.Runner"
}

// Run listens, serves until ctx is cancelled or Stop is called, then stops the server gracefully
func (r *Runner) Run(ctx context.Context) error {
	lis := r.listener
	if lis == nil {
		var err error
		lis, err = net.Listen("tcp", r.listenAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", r.listenAddr, err)
		}
	}

	auth := NewTokenAuth(r.apiToken, r.logger)
	server := grpclib.NewServer(
		grpclib.UnaryInterceptor(auth.Unary()),
		grpclib.StreamInterceptor(auth.Stream()),
	)
	transferv1.RegisterTransferServiceServer(server, r.service)
	reflection.Register(server)

	serveErr := make(chan error, 1)
	go func() {
		r.logger.Info("gRPC server listening", "address", lis.Addr().String())
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpclib.ErrServerStopped) {
			serveErr <- fmt.Errorf("gRPC server error: %w", err)
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	case <-r.ctx.Done():
	}

	r.logger.Info("gRPC server shutting down")
	server.GracefulStop()
	return <-serveErr
}

// Stop makes Run return after in-flight calls finish
func (r *Runner) Stop() {
	r.logger.Debug("Stopping gRPC runner")
	r.cancel()
}
