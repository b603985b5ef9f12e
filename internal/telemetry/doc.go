// Package telemetry — логирование и метрики provisor.
//
// Логирование построено на log/slog: SetupLogger настраивает глобальный
// логгер по переменным окружения LOG_LEVEL и LOG_FORMAT, хелперы
// WithProjectID/WithJobKey/WithApplyRunID добавляют стандартные поля.
//
// Метрики (Metrics) собираются в отдельный prometheus.Registry и после
// завершения apply пушатся в Pushgateway (PUSHGATEWAY_URL), потому что
// one-shot CLI не может отдавать /metrics.
package telemetry
