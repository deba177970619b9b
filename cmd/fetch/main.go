package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwaweather/backend/internal/config"
	"github.com/cwaweather/backend/internal/notify"
	"github.com/cwaweather/backend/internal/repository/postgres"
	"github.com/cwaweather/backend/internal/service"
)

var rule = strings.Repeat("=", 70)

var stepLabels = map[service.Step]string{
	service.StepInit:   "初始化資料庫",
	service.StepFetch:  "下載天氣資料",
	service.StepParse:  "解析 JSON 資料",
	service.StepInsert: "將資料存入資料庫",
}

func main() {
	os.Exit(run())
}

func run() int {
	fmt.Println(rule)
	fmt.Println("中央氣象署天氣資料擷取")
	fmt.Println(rule)

	cfg, err := config.Load()
	if err == nil {
		err = cfg.RequireFetch()
	}
	if err != nil {
		fmt.Printf("✗ 設定錯誤：%v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("✗ 無法連線資料庫：%v\n", err)
		return 1
	}
	defer pool.Close()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.MQTTBrokerURL != "" {
		n, err := notify.NewMQTTNotifier(notify.MQTTOptions{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
		})
		if err != nil {
			log.Printf("Warning: MQTT notifier disabled: %v", err)
		} else {
			notifier = n
		}
	}
	defer notifier.Close()

	client := service.NewCWAClient(service.CWAClientConfig{
		APIKey:      cfg.CWAAPIKey,
		BaseURL:     cfg.CWABaseURL,
		DatasetID:   cfg.CWADatasetID,
		Timeout:     cfg.CWATimeout,
		InsecureTLS: cfg.CWAInsecureTLS,
	})
	pipeline := service.NewPipeline(postgres.NewPostgresRepository(pool), client, service.NewBatchIDGenerator(), notifier)

	result, err := pipeline.Run(ctx, func(step service.Step) {
		fmt.Printf("\n[步驟 %d/%d] %s...\n", step, service.TotalSteps, stepLabels[step])
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\n\n程式被用戶中斷")
			return 1
		}
		var stepErr *service.StepError
		if errors.As(err, &stepErr) {
			fmt.Printf("✗ %s失敗，程式終止：%v\n", stepLabels[stepErr.Step], stepErr.Err)
		} else {
			fmt.Printf("\n✗ 發生未預期的錯誤：%v\n", err)
		}
		return 1
	}

	printSummary(result)
	return 0
}

func printSummary(result service.RunResult) {
	if len(result.Issues) > 0 {
		fmt.Printf("⚠ %d 個欄位無法解析，已存為空值\n", len(result.Issues))
		for _, issue := range result.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}
	fmt.Printf("✓ 成功插入 %d 筆資料（批次 ID: %s）\n", result.Inserted, result.BatchID)

	fmt.Println("\n" + rule)
	fmt.Println("執行摘要")
	fmt.Println(rule)

	fmt.Println("\n批次資訊：")
	fmt.Printf("  - 批次 ID：%s\n", result.BatchID)
	fmt.Printf("  - 新增資料筆數：%d\n", result.Inserted)
	fmt.Printf("  - 資料大小：%d bytes\n", result.Size)
	fmt.Printf("  - 校驗碼：%s\n", result.Checksum)

	stats := result.Stats
	fmt.Println("\n資料庫統計：")
	fmt.Printf("  - 總資料筆數：%d\n", stats.TotalRecords)
	fmt.Printf("  - 總批次數：%d\n", stats.TotalBatches)
	fmt.Printf("  - 最早資料時間：%s\n", formatTime(stats.EarliestRecord))
	fmt.Printf("  - 最新資料時間：%s\n", formatTime(stats.LatestRecord))

	if len(result.Recent) > 0 {
		fmt.Println("\n歷史批次：")
		for i, b := range result.Recent {
			fmt.Printf("  %d. %s (%d 筆) - %s\n", i+1, b.BatchID, b.Count, b.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		if more := stats.TotalBatches - len(result.Recent); more > 0 {
			fmt.Printf("  ... 還有 %d 個批次\n", more)
		}
	}

	fmt.Println("\n" + rule)
	fmt.Println("✓ 資料處理完成！")
	fmt.Println(rule)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}
