package integration_tests

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/chain/chaintest"
	"github.com/invoiceflow/invoiceflow/db"
	"github.com/invoiceflow/invoiceflow/db/migrations"
	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/invoiceflow/invoiceflow/lib/tokens"
	"github.com/invoiceflow/invoiceflow/lib/transport"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun/migrate"
	"github.com/ziflex/lecho/v3"
)

const (
	testAdminToken  = "admin-secret"
	testAuthMessage = "Sign in to InvoiceFlow"
)

var (
	registryAddress    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	escrowAddress      = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	marketplaceAddress = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	tokenAddress       = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

// InvoiceFlowTestServiceInit migrates a private in-memory sqlite database
// named after the suite and serves chain reads from a fake node.
func InvoiceFlowTestServiceInit(name string) (svc *service.InvoiceFlowService, node *chaintest.Node, err error) {
	c := &service.Config{
		DatabaseUri:      fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		JWTSecret:        []byte("SECRET"),
		JWTExpiry:        3600,
		AdminToken:       testAdminToken,
		AuthMessage:      testAuthMessage,
		AuthMaxSkew:      300,
		DefaultRateLimit: 1000,
		StrictRateLimit:  1000,
		BurstRateLimit:   1000,
		DefaultPageSize:  20,
		MaxPageSize:      100,
	}

	dbConn, err := db.Open(c)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx := context.Background()
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	err = migrator.Init(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init migrations: %w", err)
	}
	_, err = migrator.Migrate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to migrate: %w", err)
	}

	node = chaintest.NewNode()
	svc = &service.InvoiceFlowService{
		Config: c,
		ChainConfig: &chain.Config{
			RPCUrl:                    "ws://node.test",
			ChainID:                   97,
			InvoiceNFTAddress:         registryAddress.Hex(),
			InvoiceEscrowAddress:      escrowAddress.Hex(),
			InvoiceMarketplaceAddress: marketplaceAddress.Hex(),
			ReconnectDelay:            1,
			LogBuffer:                 16,
		},
		DB:     dbConn,
		Logger: lecho.New(io.Discard),
		Dial: func(ctx context.Context, rawurl string) (chain.Client, error) {
			return node, nil
		},
		NotificationPubSub: service.NewPubsub(),
	}
	return svc, node, nil
}

// newTestEcho wires the production routes without the response cache.
func newTestEcho(svc *service.InvoiceFlowService, listenerState func() string) *echo.Echo {
	e := transport.InitEcho(svc.Config, svc.Logger)
	logMw := transport.CreateLoggingMiddleware(svc.Logger)
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(svc.Config.StrictRateLimit, svc.Config.BurstRateLimit)
	transport.RegisterV2Endpoints(svc, e, transport.Endpoints{
		Public:                     e.Group("", logMw),
		Secured:                    e.Group("", tokens.Middleware(svc.Config.JWTSecret), logMw),
		SecuredWithStrictRateLimit: e.Group("", tokens.Middleware(svc.Config.JWTSecret), strictRateLimitMiddleware, logMw),
		StrictRateLimit:            strictRateLimitMiddleware,
		Admin:                      tokens.AdminTokenMiddleware(svc.Config.AdminToken),
		ListenerState:              listenerState,
	})
	return e
}

func clearTables(svc *service.InvoiceFlowService, tableNames ...string) error {
	for _, tableName := range tableNames {
		_, err := svc.DB.Exec(fmt.Sprintf("DELETE FROM %s", tableName))
		if err != nil {
			return err
		}
	}
	return nil
}

type wallet struct {
	key     *ecdsa.PrivateKey
	Address string
}

func newWallet() *wallet {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &wallet{key: key, Address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

func (w *wallet) addr() common.Address {
	return common.HexToAddress(w.Address)
}

// signLogin produces the personal_sign payload a browser wallet would send.
func (w *wallet) signLogin(message string) *service.AuthRequest {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		panic(err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return &service.AuthRequest{
		Address:   crypto.PubkeyToAddress(w.key.PublicKey).Hex(),
		Signature: hexutil.Encode(sig),
		Message:   message,
	}
}

func loginMessage() string {
	return fmt.Sprintf("%s\nTimestamp: %d", testAuthMessage, time.Now().Unix())
}

type TestSuite struct {
	suite.Suite
	echo    *echo.Echo
	service *service.InvoiceFlowService
	node    *chaintest.Node
}

func (suite *TestSuite) request(method, path string, body interface{}, token string, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func (suite *TestSuite) decode(rec *httptest.ResponseRecorder, v interface{}) {
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(v))
}

func (suite *TestSuite) login(w *wallet) string {
	rec := suite.request(http.MethodPost, "/auth", w.signLogin(loginMessage()), "")
	if !assert.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String()) {
		return ""
	}
	body := struct {
		AccessToken string `json:"access_token"`
	}{}
	suite.decode(rec, &body)
	return body.AccessToken
}

func (suite *TestSuite) checkErrResponse(rec *httptest.ResponseRecorder, status int) *responses.ErrorResponse {
	errorResponse := &responses.ErrorResponse{}
	assert.Equal(suite.T(), status, rec.Code, rec.Body.String())
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(errorResponse))
	return errorResponse
}

type createInvoiceBody struct {
	TokenID      *int64    `json:"tokenId,omitempty"`
	Amount       string    `json:"amount"`
	TokenAddress string    `json:"tokenAddress"`
	PayerAddress string    `json:"payerAddress"`
	Title        string    `json:"title"`
	DueDate      time.Time `json:"dueDate"`
}

type invoiceResponse struct {
	ID                  int64  `json:"id"`
	TokenID             *int64 `json:"token_id"`
	Amount              string `json:"amount"`
	SellerAddress       string `json:"seller_address"`
	PayerAddress        string `json:"payer_address"`
	CurrentOwnerAddress string `json:"current_owner_address"`
	Status              string `json:"status"`
	Title               string `json:"title"`
	Listings            []struct {
		ID       int64 `json:"id"`
		IsActive bool  `json:"is_active"`
	} `json:"listings"`
	Payments []struct {
		TxHash string `json:"tx_hash"`
	} `json:"payments"`
}

func (suite *TestSuite) createInvoice(token string, payer *wallet, tokenID *int64, title string) *invoiceResponse {
	rec := suite.request(http.MethodPost, "/v2/invoices", &createInvoiceBody{
		TokenID:      tokenID,
		Amount:       "1000",
		TokenAddress: tokenAddress.Hex(),
		PayerAddress: payer.Address,
		Title:        title,
		DueDate:      time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second),
	}, token)
	invoice := &invoiceResponse{}
	if assert.Equal(suite.T(), http.StatusCreated, rec.Code, rec.Body.String()) {
		suite.decode(rec, invoice)
	}
	return invoice
}

func (suite *TestSuite) getInvoice(id int64) *invoiceResponse {
	rec := suite.request(http.MethodGet, fmt.Sprintf("/v2/invoices/%d", id), nil, "")
	invoice := &invoiceResponse{}
	if assert.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String()) {
		suite.decode(rec, invoice)
	}
	return invoice
}
