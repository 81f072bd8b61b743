package mocks

//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/datasource DataSource
