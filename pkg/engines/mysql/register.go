package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/config"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
)

func init() {
	engines.Register(engines.Registration{
		ID:          sqltypes.EngineMySQL,
		DisplayName: "MySQL",
		Factory: func(ctx context.Context, cfg *config.EngineConfig, logger *zap.Logger) (engines.Engine, error) {
			return New(ctx, cfg, logger)
		},
		Classifier: classifier{},
	})
}
