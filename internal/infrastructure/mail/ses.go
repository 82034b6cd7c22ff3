package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/infrastructure/awscfg"
)

// SESSender delivers the raw MIME message through Amazon SES.
type SESSender struct {
	client *ses.Client
}

func NewSESSender(ctx context.Context, cfg *config.Config) (*SESSender, error) {
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.SESRegion)
	if err != nil {
		return nil, err
	}
	client := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return &SESSender{client: client}, nil
}

func (s *SESSender) Send(ctx context.Context, m *Message) error {
	data, err := raw(m)
	if err != nil {
		return err
	}
	_, err = s.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		RawMessage: &types.RawMessage{Data: data},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

// NewSender picks the transport named by cfg.MailTransport.
func NewSender(ctx context.Context, cfg *config.Config) (Sender, error) {
	switch cfg.MailTransport {
	case "ses":
		return NewSESSender(ctx, cfg)
	case "smtp", "":
		return NewSMTPSender(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}
