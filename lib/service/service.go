package service

import (
	"time"

	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/rabbitmq"
	"github.com/labstack/gommon/random"
	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"
)

const alphaNumBytes = random.Alphanumeric

type InvoiceFlowService struct {
	Config             *Config
	ChainConfig        *chain.Config
	DB                 *bun.DB
	Logger             *lecho.Logger
	Dial               chain.DialFunc
	NotificationPubSub *Pubsub
	RabbitMQClient     rabbitmq.Client
	// Now is overridden in tests
	Now func() time.Time
}

func (svc *InvoiceFlowService) now() time.Time {
	if svc.Now != nil {
		return svc.Now()
	}
	return time.Now().UTC()
}
