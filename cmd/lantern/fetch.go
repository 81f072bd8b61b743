package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch daily aggregates from Polygon into a CSV or Parquet data file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Stock ticker symbol",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Folder to write the data file to",
				Value:   "data",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv or parquet",
				Value:   "csv",
			},
		},
		Action: fetchAction,
	}
}

// fetchAction downloads one ticker's daily bars and writes them as a data
// file the backtest data source can read directly.
func fetchAction(ctx context.Context, cmd *cli.Command) error {
	ticker := cmd.String("ticker")
	startDate := cmd.Timestamp("start")
	endDate := cmd.Timestamp("end")
	outputDir := cmd.String("output")
	format := cmd.String("format")

	if format != "csv" && format != "parquet" {
		return fmt.Errorf("unsupported format %q (use csv or parquet)", format)
	}

	apiKey := os.Getenv("POLYGON_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("POLYGON_API_KEY is not set")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(outputDir, dataFileName(ticker, startDate, endDate, format))

	client := polygon.New(apiKey)
	params := models.ListAggsParams{
		Ticker:     ticker,
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
		Multiplier: 1,
		Timespan:   models.Day,
	}

	var (
		rows int
		err  error
	)

	if format == "parquet" {
		rows, err = writeParquetFile(ctx, client, params, ticker, outputPath)
	} else {
		rows, err = writeCSVFile(ctx, client, params, ticker, outputPath)
	}

	if err != nil {
		return err
	}

	fmt.Printf("\nWrote %d daily bars to %s\n", rows, outputPath)

	return nil
}

// streamAggs iterates the Polygon aggregate pages behind a spinner and hands
// each bar to onBar.
func streamAggs(ctx context.Context, client *polygon.Client, params models.ListAggsParams, ticker string, onBar func(timestamp time.Time, open, high, low, closePrice, volume float64) error) (int, error) {
	bar := progressbar.Default(-1, "fetching "+ticker)
	rows := 0

	iter := client.ListAggs(ctx, &params)
	for iter.Next() {
		agg := iter.Item()

		if err := onBar(time.Time(agg.Timestamp), agg.Open, agg.High, agg.Low, agg.Close, agg.Volume); err != nil {
			return rows, err
		}

		rows++

		_ = bar.Add(1)
	}

	if err := iter.Err(); err != nil {
		return rows, fmt.Errorf("aggregate download failed: %w", err)
	}

	_ = bar.Finish()

	return rows, nil
}

func writeCSVFile(ctx context.Context, client *polygon.Client, params models.ListAggsParams, ticker string, outputPath string) (int, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"time", "symbol", "open", "high", "low", "close", "volume"}); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	rows, err := streamAggs(ctx, client, params, ticker, func(timestamp time.Time, open, high, low, closePrice, volume float64) error {
		return writer.Write(csvRecord(ticker, timestamp, open, high, low, closePrice, volume))
	})
	if err != nil {
		return rows, err
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return rows, nil
}

// writeParquetFile stages the bars in an in-memory DuckDB table and exports
// them with COPY, which handles the Parquet encoding.
func writeParquetFile(ctx context.Context, client *polygon.Client, params models.ListAggsParams, ticker string, outputPath string) (int, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return 0, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE market_data (
			time TIMESTAMP,
			symbol TEXT,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO market_data (time, symbol, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()

		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	rows, err := streamAggs(ctx, client, params, ticker, func(timestamp time.Time, open, high, low, closePrice, volume float64) error {
		_, execErr := stmt.Exec(timestamp, ticker, open, high, low, closePrice, volume)

		return execErr
	})
	if err != nil {
		tx.Rollback()

		return rows, err
	}

	if err := tx.Commit(); err != nil {
		return rows, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf(`COPY market_data TO '%s' (FORMAT PARQUET)`, outputPath)); err != nil {
		return rows, fmt.Errorf("failed to export to Parquet: %w", err)
	}

	return rows, nil
}

func dataFileName(ticker string, startDate, endDate time.Time, format string) string {
	return fmt.Sprintf("%s_%s_%s_1_day.%s",
		ticker,
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"),
		format,
	)
}

func csvRecord(ticker string, timestamp time.Time, open, high, low, closePrice, volume float64) []string {
	return []string{
		timestamp.UTC().Format(time.RFC3339),
		ticker,
		strconv.FormatFloat(open, 'f', -1, 64),
		strconv.FormatFloat(high, 'f', -1, 64),
		strconv.FormatFloat(low, 'f', -1, 64),
		strconv.FormatFloat(closePrice, 'f', -1, 64),
		strconv.FormatFloat(volume, 'f', -1, 64),
	}
}
