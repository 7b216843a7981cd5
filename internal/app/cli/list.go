package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// ListAction はAirwall一覧を表示するコマンドのアクション
func ListAction(ctx context.Context, cmd *cli.Command) error {
	// 共通コンテキストの初期化
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}

	slog.Info("Airwall一覧表示を開始", "conductor", appCtx.Conductor.BaseURL())

	appliances, err := appCtx.Conductor.ListAppliances(ctx)
	if err != nil {
		return fmt.Errorf("Airwall一覧の取得に失敗: %w", err)
	}

	displayAppliancesTable(os.Stdout, appliances)

	return nil
}
