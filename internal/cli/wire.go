package cli

import (
	"context"
	"errors"
	"fmt"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/lazypower/rollcall/internal/config"
	"github.com/lazypower/rollcall/internal/dynamostore"
	"github.com/lazypower/rollcall/internal/engine"
	"github.com/lazypower/rollcall/internal/paramstore"
	"github.com/lazypower/rollcall/internal/server"
	"github.com/lazypower/rollcall/internal/store"
	"github.com/lazypower/rollcall/internal/telegram"
)

// memberStore is what every backend provides: the engine's read/write side
// and the server's read side.
type memberStore interface {
	engine.MemberStore
	server.Store
}

// openStore opens the configured backend. The returned func releases it.
func openStore(ctx context.Context, c config.Config) (memberStore, func() error, error) {
	switch c.Database.Driver {
	case config.DriverDynamoDB:
		awsCfg, err := awscfg.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		st, err := dynamostore.New(dynamodb.NewFromConfig(awsCfg), c.Database.Table)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("store opened", "driver", c.Database.Driver, "table", c.Database.Table)
		return st, func() error { return nil }, nil

	default:
		path := c.Database.Path
		if path == "" {
			var err error
			path, err = store.DefaultDBPath()
			if err != nil {
				return nil, nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Info("store opened", "driver", config.DriverSQLite, "path", path)
		return db, db.Close, nil
	}
}

// resolveToken returns the configured bot token, fetching it from SSM when
// only telegram.token_param is set.
func resolveToken(ctx context.Context, c config.Config) (string, error) {
	if c.Telegram.Token != "" {
		return c.Telegram.Token, nil
	}
	if c.Telegram.TokenParam == "" {
		return "", errors.New("no bot token: set BOT_TOKEN, telegram.token or telegram.token_param")
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	ps, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return "", err
	}
	return ps.GetParameter(ctx, c.Telegram.TokenParam)
}

// newTelegramClient resolves the token and builds a Bot API client.
func newTelegramClient(ctx context.Context, c config.Config) (*telegram.Client, error) {
	token, err := resolveToken(ctx, c)
	if err != nil {
		return nil, err
	}
	return telegram.NewClient(token, telegram.Options{
		APIURL:      c.Telegram.APIURL,
		RateLimit:   c.Telegram.RateLimit,
		PollTimeout: c.Telegram.PollTimeout,
		Ban:         c.Moderation.Ban,
		Logger:      logger,
	})
}
