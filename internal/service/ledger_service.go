package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// PublicProcedures can be called without an operator token.
var PublicProcedures = []string{
	apiconnect.LedgerServiceListUsersProcedure,
	apiconnect.LedgerServiceListExpensesProcedure,
	apiconnect.LedgerServiceListBalancesProcedure,
	apiconnect.AuthServiceLoginProcedure,
}

// LedgerService implements the Connect LedgerService on top of a Coordinator.
type LedgerService struct {
	coord *Coordinator
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(coord *Coordinator) *LedgerService {
	return &LedgerService{coord: coord}
}

// RegisterUser adds a user to the ledger.
func (s *LedgerService) RegisterUser(ctx context.Context, req *connect.Request[api.RegisterUserRequest]) (*connect.Response[api.RegisterUserResponse], error) {
	slog.Debug("RegisterUser request", "name", req.Msg.Name, "operator", middleware.GetOperator(ctx), "request_id", middleware.GetRequestID(ctx))

	user, err := s.coord.RegisterUser(ctx, req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.RegisterUserResponse{
		User: &api.User{ID: user.ID, Name: user.Name, CreatedAt: user.CreatedAt},
	}), nil
}

// RemoveUser deletes a user that nothing references.
func (s *LedgerService) RemoveUser(ctx context.Context, req *connect.Request[api.RemoveUserRequest]) (*connect.Response[api.RemoveUserResponse], error) {
	slog.Debug("RemoveUser request", "name", req.Msg.Name, "operator", middleware.GetOperator(ctx), "request_id", middleware.GetRequestID(ctx))

	if err := s.coord.RemoveUser(ctx, req.Msg.Name); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.RemoveUserResponse{}), nil
}

// AddExpense records an expense and updates balances.
func (s *LedgerService) AddExpense(ctx context.Context, req *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error) {
	slog.Debug("AddExpense request",
		"payer", req.Msg.Payer,
		"amount", req.Msg.Amount.String(),
		"participants", len(req.Msg.Participants),
		"custom", req.Msg.CustomShares != nil,
		"operator", middleware.GetOperator(ctx),
		"request_id", middleware.GetRequestID(ctx),
	)

	id, err := s.coord.AddExpense(ctx, AddExpenseInput{
		Payer:        req.Msg.Payer,
		Amount:       req.Msg.Amount,
		Description:  req.Msg.Description,
		Participants: req.Msg.Participants,
		CustomShares: req.Msg.CustomShares,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.AddExpenseResponse{ExpenseID: id}), nil
}

// DeleteExpense removes an expense and reverses its balances.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	slog.Debug("DeleteExpense request", "expense_id", req.Msg.ExpenseID, "operator", middleware.GetOperator(ctx), "request_id", middleware.GetRequestID(ctx))

	if err := s.coord.DeleteExpense(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// Settle records a direct payment between two users.
func (s *LedgerService) Settle(ctx context.Context, req *connect.Request[api.SettleRequest]) (*connect.Response[api.SettleResponse], error) {
	slog.Debug("Settle request",
		"from", req.Msg.From,
		"to", req.Msg.To,
		"amount", req.Msg.Amount.String(),
		"operator", middleware.GetOperator(ctx),
		"request_id", middleware.GetRequestID(ctx),
	)

	if err := s.coord.Settle(ctx, req.Msg.From, req.Msg.To, req.Msg.Amount); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.SettleResponse{}), nil
}

// ListUsers returns every user with what others owe them.
func (s *LedgerService) ListUsers(ctx context.Context, req *connect.Request[api.ListUsersRequest]) (*connect.Response[api.ListUsersResponse], error) {
	users := s.coord.Users()

	resp := &api.ListUsersResponse{Users: make([]*api.User, len(users))}
	for i, u := range users {
		resp.Users[i] = &api.User{
			ID:        u.ID,
			Name:      u.Name,
			CreatedAt: u.CreatedAt,
			Owed:      u.Owed,
		}
	}
	return connect.NewResponse(resp), nil
}

// ListExpenses returns all expenses, newest first.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	expenses := s.coord.Expenses()

	resp := &api.ListExpensesResponse{Expenses: make([]*api.Expense, len(expenses))}
	for i, e := range expenses {
		resp.Expenses[i] = expenseToAPI(e)
	}
	return connect.NewResponse(resp), nil
}

// ListBalances returns outstanding balances, largest first, with each user's
// net position.
func (s *LedgerService) ListBalances(ctx context.Context, req *connect.Request[api.ListBalancesRequest]) (*connect.Response[api.ListBalancesResponse], error) {
	balances := s.coord.Balances()
	positions := calculator.NetPositions(balances)

	resp := &api.ListBalancesResponse{
		Balances:  make([]*api.Balance, len(balances)),
		Positions: make([]*api.Position, len(positions)),
	}
	for i, b := range balances {
		resp.Balances[i] = &api.Balance{Creditor: b.CreditorName, Debtor: b.DebtorName, Amount: b.Amount}
	}
	for i, p := range positions {
		resp.Positions[i] = &api.Position{User: p.MemberName, Owed: p.Owed, Owes: p.Owes, Net: p.Net}
	}
	return connect.NewResponse(resp), nil
}

func expenseToAPI(e *models.Expense) *api.Expense {
	out := &api.Expense{
		ID:          e.ID,
		Payer:       e.PayerName,
		Amount:      e.Amount,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		Shares:      make([]*api.Share, len(e.Shares)),
	}
	for i, share := range e.Shares {
		out.Shares[i] = &api.Share{User: share.UserName, Amount: share.Amount}
	}
	return out
}

// toConnectError maps ledger error kinds onto Connect codes.
func toConnectError(err error) *connect.Error {
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case ledger.KindConflict:
		if errors.Is(err, ledger.ErrDuplicateUser) {
			return connect.NewError(connect.CodeAlreadyExists, err)
		}
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case ledger.KindNotFound:
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
