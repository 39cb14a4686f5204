package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/transferflow-backend/internal/adapter/grpc/transferv1"
	"github.com/simaogato/transferflow-backend/internal/usecase/seeder"
)

// Version is set during build using ldflags
var Version = "dev"

var connectionFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "server",
		Usage:   "Server address (host:port)",
		Aliases: []string{"s"},
		Value:   "localhost:8080",
		Sources: cli.EnvVars("TRANSFERFLOW_SERVER"),
	},
	&cli.StringFlag{
		Name:    "token",
		Usage:   "API token sent in the authorization header",
		Aliases: []string{"t"},
		Value:   "dev-token",
		Sources: cli.EnvVars("TRANSFERFLOW_GRPC_API_TOKEN"),
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "Timeout for the call",
		Value: time.Minute,
	},
}

func main() {
	app := &cli.Command{
		Name:    "transferflow",
		Version: Version,
		Usage:   "Client for the transferflow server",
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "Submit a money transfer and wait for its outcome",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "Source account", Value: seeder.DemoSourceAccount},
					&cli.StringFlag{Name: "to", Usage: "Target account", Value: seeder.DemoTargetAccount},
					&cli.StringFlag{Name: "amount", Usage: "Amount as a decimal string", Value: "250"},
					&cli.StringFlag{Name: "reference", Usage: "Reference id of the logical transfer", Value: "12345"},
					&cli.StringFlag{Name: "session", Usage: "Session id of this attempt, generated by the server when empty"},
				}, connectionFlags...),
				Action: submitAction,
			},
			{
				Name:      "get",
				Usage:     "Show the stored record of a transfer",
				ArgsUsage: "<session-id>",
				Flags:     connectionFlags,
				Action:    lookupAction(transferv1.TransferServiceClient.GetTransfer),
			},
			{
				Name:      "session",
				Usage:     "Show which steps were issued for a transfer attempt",
				ArgsUsage: "<session-id>",
				Flags:     connectionFlags,
				Action:    lookupAction(transferv1.TransferServiceClient.GetSession),
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type call func(transferv1.TransferServiceClient, context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)

func invoke(ctx context.Context, cmd *cli.Command, fn call, req *structpb.Struct) (*structpb.Struct, error) {
	conn, err := grpc.NewClient(cmd.String("server"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cmd.String("server"), err)
	}
	defer func() { _ = conn.Close() }()

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+cmd.String("token"))

	return fn(transferv1.NewTransferServiceClient(conn), ctx, req)
}

func submitAction(ctx context.Context, cmd *cli.Command) error {
	req, err := structpb.NewStruct(map[string]interface{}{
		"source_account": cmd.String("from"),
		"target_account": cmd.String("to"),
		"amount":         cmd.String("amount"),
		"reference_id":   cmd.String("reference"),
		"session_id":     cmd.String("session"),
	})
	if err != nil {
		return err
	}

	resp, err := invoke(ctx, cmd, transferv1.TransferServiceClient.SubmitTransfer, req)
	if err != nil {
		return err
	}
	fmt.Println(renderOutcome(resp))
	return nil
}

func lookupAction(fn call) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() < 1 {
			return fmt.Errorf("session id required")
		}
		req, err := structpb.NewStruct(map[string]interface{}{"session_id": cmd.Args().Get(0)})
		if err != nil {
			return err
		}
		resp, err := invoke(ctx, cmd, fn, req)
		if err != nil {
			return err
		}
		fmt.Println(renderOutcome(resp))
		return nil
	}
}
