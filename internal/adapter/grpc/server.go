package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/transferflow-backend/internal/adapter/grpc/transferv1"
	"github.com/simaogato/transferflow-backend/internal/domain"
	"github.com/simaogato/transferflow-backend/internal/usecase/transfer"
)

var _ transferv1.TransferServiceServer = (*Server)(nil)

// Server implements the TransferService gRPC server
type Server struct {
	TransferService *transfer.TransferService
}

// NewServer creates a new gRPC server instance
func NewServer(transferService *transfer.TransferService) *Server {
	return &Server{
		TransferService: transferService,
	}
}

// SubmitTransfer handles the SubmitTransfer RPC
func (s *Server) SubmitTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// Amounts travel as decimal strings, a JSON number would pass through a float
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid amount format: %v", err)
	}

	input := transfer.SubmitInput{
		SourceAccount: stringField(req, "source_account"),
		TargetAccount: stringField(req, "target_account"),
		Amount:        amount,
		ReferenceID:   stringField(req, "reference_id"),
		SessionID:     stringField(req, "session_id"),
	}

	// Call usecase service
	transferReq, outcome, err := s.TransferService.Submit(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	// Build response
	fields := outcomeFields(outcome)
	fields["session_id"] = transferReq.SessionID
	fields["reference_id"] = transferReq.ReferenceID
	return newStruct(fields)
}

// GetTransfer handles the GetTransfer RPC
func (s *Server) GetTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	record, err := s.TransferService.Get(ctx, stringField(req, "session_id"))
	if err != nil {
		return nil, mapError(err)
	}

	fields := outcomeFields(record.Outcome)
	fields["session_id"] = record.Request.SessionID
	fields["reference_id"] = record.Request.ReferenceID
	fields["source_account"] = record.Request.SourceAccount
	fields["target_account"] = record.Request.TargetAccount
	fields["amount"] = record.Request.Amount.StringFixed(domain.AmountPrecision)
	fields["created_at"] = record.CreatedAt.UTC().Format(time.RFC3339)
	fields["updated_at"] = record.UpdatedAt.UTC().Format(time.RFC3339)
	return newStruct(fields)
}

// GetSession handles the GetSession RPC
func (s *Server) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	record, err := s.TransferService.Session(ctx, stringField(req, "session_id"))
	if err != nil {
		return nil, mapError(err)
	}

	fields := map[string]interface{}{
		"session_id": record.SessionID,
		"withdraw":   record.Withdraw,
		"deposit":    record.Deposit,
		"refund":     record.Refund,
	}
	if t := record.Transfer; t != nil {
		fields["transfer"] = map[string]interface{}{
			"source_account": t.SourceAccount,
			"target_account": t.TargetAccount,
			"amount":         t.Amount.StringFixed(domain.AmountPrecision),
			"reference_id":   t.ReferenceID,
		}
	}
	return newStruct(fields)
}

func outcomeFields(outcome domain.TransferOutcome) map[string]interface{} {
	fields := map[string]interface{}{
		"status":               string(outcome.Status),
		"requires_remediation": outcome.RequiresRemediation,
	}
	if outcome.DepositConfirmation != "" {
		fields["deposit_confirmation"] = outcome.DepositConfirmation
	}
	if outcome.RefundConfirmation != "" {
		fields["refund_confirmation"] = outcome.RefundConfirmation
	}
	if outcome.Reason != "" {
		fields["reason"] = outcome.Reason
	}
	return fields
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func decimalField(req *structpb.Struct, name string) (decimal.Decimal, error) {
	value, ok := req.GetFields()[name]
	if !ok {
		return decimal.Zero, errors.New(name + " is required")
	}
	kind, ok := value.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return decimal.Zero, errors.New(name + " must be a decimal string")
	}
	return decimal.NewFromString(kind.StringValue)
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	errorMsg := err.Error()

	switch {
	case errors.Is(err, domain.ErrInvalidTransfer), errors.Is(err, domain.ErrInvalidAccount):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	case errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrCheckpointNotFound):
		return status.Errorf(codes.NotFound, "%s", errorMsg)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
