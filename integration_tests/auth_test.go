package integration_tests

import (
	"fmt"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type AuthTestSuite struct {
	TestSuite
	alice *wallet
}

func (suite *AuthTestSuite) SetupSuite() {
	svc, node, err := InvoiceFlowTestServiceInit("auth_suite")
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	suite.service = svc
	suite.node = node
	suite.echo = newTestEcho(svc, nil)
	suite.alice = newWallet()
}

func (suite *AuthTestSuite) TearDownSuite() {
	suite.service.DB.Close()
}

func (suite *AuthTestSuite) TestAuth() {
	token := suite.login(suite.alice)
	assert.NotEmpty(suite.T(), token)

	rec := suite.request(http.MethodGet, "/v2/users/me", nil, token)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	me := struct {
		ID            int64  `json:"id"`
		WalletAddress string `json:"wallet_address"`
	}{}
	suite.decode(rec, &me)
	assert.Equal(suite.T(), suite.alice.Address, me.WalletAddress)

	// second login keeps the account
	again := suite.login(suite.alice)
	rec = suite.request(http.MethodGet, "/v2/users/"+suite.alice.Address, nil, again)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	profile := struct {
		ID int64 `json:"id"`
	}{}
	suite.decode(rec, &profile)
	assert.Equal(suite.T(), me.ID, profile.ID)
}

func (suite *AuthTestSuite) TestAuthWithWrongSigner() {
	req := suite.alice.signLogin(loginMessage())
	req.Address = newWallet().Address
	rec := suite.request(http.MethodPost, "/auth", req, "")
	errResponse := suite.checkErrResponse(rec, http.StatusUnauthorized)
	assert.Equal(suite.T(), 1, errResponse.Code)
}

func (suite *AuthTestSuite) TestAuthWithStaleMessage() {
	stale := fmt.Sprintf("%s\nTimestamp: %d", testAuthMessage, time.Now().Add(-time.Hour).Unix())
	rec := suite.request(http.MethodPost, "/auth", suite.alice.signLogin(stale), "")
	suite.checkErrResponse(rec, http.StatusUnauthorized)
}

func (suite *AuthTestSuite) TestAuthWithUnexpectedMessage() {
	rec := suite.request(http.MethodPost, "/auth", suite.alice.signLogin("Sign in to something else"), "")
	suite.checkErrResponse(rec, http.StatusUnauthorized)
}

func (suite *AuthTestSuite) TestAuthMissingFields() {
	rec := suite.request(http.MethodPost, "/auth", map[string]string{"address": suite.alice.Address}, "")
	errResponse := suite.checkErrResponse(rec, http.StatusBadRequest)
	assert.Equal(suite.T(), 8, errResponse.Code)
}

func (suite *AuthTestSuite) TestSecuredRoutesNeedToken() {
	rec := suite.request(http.MethodGet, "/v2/users/me", nil, "")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	rec = suite.request(http.MethodGet, "/v2/users/me", nil, "not-a-token")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *AuthTestSuite) TestUpdateMe() {
	token := suite.login(suite.alice)
	name := "Alice"
	role := "seller"
	rec := suite.request(http.MethodPut, "/v2/users/me", map[string]interface{}{
		"displayName": name,
		"role":        role,
	}, token)
	assert.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String())

	rec = suite.request(http.MethodGet, "/v2/users/me", nil, token)
	me := struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}{}
	suite.decode(rec, &me)
	assert.Equal(suite.T(), name, me.DisplayName)
	assert.Equal(suite.T(), role, me.Role)

	rec = suite.request(http.MethodPut, "/v2/users/me", map[string]interface{}{"role": "admin"}, token)
	suite.checkErrResponse(rec, http.StatusBadRequest)
}

func (suite *AuthTestSuite) TestUnknownUser() {
	rec := suite.request(http.MethodGet, "/v2/users/"+newWallet().Address, nil, "")
	suite.checkErrResponse(rec, http.StatusNotFound)
}

func (suite *AuthTestSuite) TestHealth() {
	rec := suite.request(http.MethodGet, "/health", nil, "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	health := struct {
		Result   string `json:"result"`
		Database string `json:"database"`
	}{}
	suite.decode(rec, &health)
	assert.Equal(suite.T(), "OK", health.Result)
	assert.Equal(suite.T(), "OK", health.Database)
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
