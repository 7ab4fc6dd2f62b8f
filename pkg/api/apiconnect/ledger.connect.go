package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/pkg/api"
)

const (
	// LedgerServiceName is the fully-qualified name of the LedgerService service.
	LedgerServiceName = "splitledger.v1.LedgerService"
	// AuthServiceName is the fully-qualified name of the AuthService service.
	AuthServiceName = "splitledger.v1.AuthService"
)

// Procedure paths, usable with connect.Request.Spec().Procedure.
const (
	LedgerServiceRegisterUserProcedure  = "/splitledger.v1.LedgerService/RegisterUser"
	LedgerServiceRemoveUserProcedure    = "/splitledger.v1.LedgerService/RemoveUser"
	LedgerServiceAddExpenseProcedure    = "/splitledger.v1.LedgerService/AddExpense"
	LedgerServiceDeleteExpenseProcedure = "/splitledger.v1.LedgerService/DeleteExpense"
	LedgerServiceSettleProcedure        = "/splitledger.v1.LedgerService/Settle"
	LedgerServiceListUsersProcedure     = "/splitledger.v1.LedgerService/ListUsers"
	LedgerServiceListExpensesProcedure  = "/splitledger.v1.LedgerService/ListExpenses"
	LedgerServiceListBalancesProcedure  = "/splitledger.v1.LedgerService/ListBalances"
	AuthServiceLoginProcedure           = "/splitledger.v1.AuthService/Login"
)

// LedgerServiceClient is a client for the splitledger.v1.LedgerService service.
type LedgerServiceClient interface {
	RegisterUser(context.Context, *connect.Request[api.RegisterUserRequest]) (*connect.Response[api.RegisterUserResponse], error)
	RemoveUser(context.Context, *connect.Request[api.RemoveUserRequest]) (*connect.Response[api.RemoveUserResponse], error)
	AddExpense(context.Context, *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error)
	Settle(context.Context, *connect.Request[api.SettleRequest]) (*connect.Response[api.SettleResponse], error)
	ListUsers(context.Context, *connect.Request[api.ListUsersRequest]) (*connect.Response[api.ListUsersResponse], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	ListBalances(context.Context, *connect.Request[api.ListBalancesRequest]) (*connect.Response[api.ListBalancesResponse], error)
}

// NewLedgerServiceClient constructs a client for the splitledger.v1.LedgerService
// service. The JSON codec is always used; further options are appended.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ledgerServiceClient{
		registerUser:  connect.NewClient[api.RegisterUserRequest, api.RegisterUserResponse](httpClient, baseURL+LedgerServiceRegisterUserProcedure, opts...),
		removeUser:    connect.NewClient[api.RemoveUserRequest, api.RemoveUserResponse](httpClient, baseURL+LedgerServiceRemoveUserProcedure, opts...),
		addExpense:    connect.NewClient[api.AddExpenseRequest, api.AddExpenseResponse](httpClient, baseURL+LedgerServiceAddExpenseProcedure, opts...),
		deleteExpense: connect.NewClient[api.DeleteExpenseRequest, api.DeleteExpenseResponse](httpClient, baseURL+LedgerServiceDeleteExpenseProcedure, opts...),
		settle:        connect.NewClient[api.SettleRequest, api.SettleResponse](httpClient, baseURL+LedgerServiceSettleProcedure, opts...),
		listUsers:     connect.NewClient[api.ListUsersRequest, api.ListUsersResponse](httpClient, baseURL+LedgerServiceListUsersProcedure, opts...),
		listExpenses:  connect.NewClient[api.ListExpensesRequest, api.ListExpensesResponse](httpClient, baseURL+LedgerServiceListExpensesProcedure, opts...),
		listBalances:  connect.NewClient[api.ListBalancesRequest, api.ListBalancesResponse](httpClient, baseURL+LedgerServiceListBalancesProcedure, opts...),
	}
}

type ledgerServiceClient struct {
	registerUser  *connect.Client[api.RegisterUserRequest, api.RegisterUserResponse]
	removeUser    *connect.Client[api.RemoveUserRequest, api.RemoveUserResponse]
	addExpense    *connect.Client[api.AddExpenseRequest, api.AddExpenseResponse]
	deleteExpense *connect.Client[api.DeleteExpenseRequest, api.DeleteExpenseResponse]
	settle        *connect.Client[api.SettleRequest, api.SettleResponse]
	listUsers     *connect.Client[api.ListUsersRequest, api.ListUsersResponse]
	listExpenses  *connect.Client[api.ListExpensesRequest, api.ListExpensesResponse]
	listBalances  *connect.Client[api.ListBalancesRequest, api.ListBalancesResponse]
}

func (c *ledgerServiceClient) RegisterUser(ctx context.Context, req *connect.Request[api.RegisterUserRequest]) (*connect.Response[api.RegisterUserResponse], error) {
	return c.registerUser.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) RemoveUser(ctx context.Context, req *connect.Request[api.RemoveUserRequest]) (*connect.Response[api.RemoveUserResponse], error) {
	return c.removeUser.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) AddExpense(ctx context.Context, req *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) Settle(ctx context.Context, req *connect.Request[api.SettleRequest]) (*connect.Response[api.SettleResponse], error) {
	return c.settle.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListUsers(ctx context.Context, req *connect.Request[api.ListUsersRequest]) (*connect.Response[api.ListUsersResponse], error) {
	return c.listUsers.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListBalances(ctx context.Context, req *connect.Request[api.ListBalancesRequest]) (*connect.Response[api.ListBalancesResponse], error) {
	return c.listBalances.CallUnary(ctx, req)
}

// LedgerServiceHandler is implemented by the splitledger.v1.LedgerService server.
type LedgerServiceHandler interface {
	RegisterUser(context.Context, *connect.Request[api.RegisterUserRequest]) (*connect.Response[api.RegisterUserResponse], error)
	RemoveUser(context.Context, *connect.Request[api.RemoveUserRequest]) (*connect.Response[api.RemoveUserResponse], error)
	AddExpense(context.Context, *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error)
	Settle(context.Context, *connect.Request[api.SettleRequest]) (*connect.Response[api.SettleResponse], error)
	ListUsers(context.Context, *connect.Request[api.ListUsersRequest]) (*connect.Response[api.ListUsersResponse], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	ListBalances(context.Context, *connect.Request[api.ListBalancesRequest]) (*connect.Response[api.ListBalancesResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	registerUser := connect.NewUnaryHandler(LedgerServiceRegisterUserProcedure, svc.RegisterUser, opts...)
	removeUser := connect.NewUnaryHandler(LedgerServiceRemoveUserProcedure, svc.RemoveUser, opts...)
	addExpense := connect.NewUnaryHandler(LedgerServiceAddExpenseProcedure, svc.AddExpense, opts...)
	deleteExpense := connect.NewUnaryHandler(LedgerServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...)
	settle := connect.NewUnaryHandler(LedgerServiceSettleProcedure, svc.Settle, opts...)
	listUsers := connect.NewUnaryHandler(LedgerServiceListUsersProcedure, svc.ListUsers, opts...)
	listExpenses := connect.NewUnaryHandler(LedgerServiceListExpensesProcedure, svc.ListExpenses, opts...)
	listBalances := connect.NewUnaryHandler(LedgerServiceListBalancesProcedure, svc.ListBalances, opts...)

	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LedgerServiceRegisterUserProcedure:
			registerUser.ServeHTTP(w, r)
		case LedgerServiceRemoveUserProcedure:
			removeUser.ServeHTTP(w, r)
		case LedgerServiceAddExpenseProcedure:
			addExpense.ServeHTTP(w, r)
		case LedgerServiceDeleteExpenseProcedure:
			deleteExpense.ServeHTTP(w, r)
		case LedgerServiceSettleProcedure:
			settle.ServeHTTP(w, r)
		case LedgerServiceListUsersProcedure:
			listUsers.ServeHTTP(w, r)
		case LedgerServiceListExpensesProcedure:
			listExpenses.ServeHTTP(w, r)
		case LedgerServiceListBalancesProcedure:
			listBalances.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// AuthServiceClient is a client for the splitledger.v1.AuthService service.
type AuthServiceClient interface {
	Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error)
}

// NewAuthServiceClient constructs a client for the splitledger.v1.AuthService service.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &authServiceClient{
		login: connect.NewClient[api.LoginRequest, api.LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
	}
}

type authServiceClient struct {
	login *connect.Client[api.LoginRequest, api.LoginResponse]
}

func (c *authServiceClient) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

// AuthServiceHandler is implemented by the splitledger.v1.AuthService server.
type AuthServiceHandler interface {
	Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler from the service implementation.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	login := connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...)

	return "/" + AuthServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AuthServiceLoginProcedure:
			login.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
