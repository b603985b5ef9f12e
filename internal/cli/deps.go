package cli

import (
	"log/slog"

	"github.com/shaiso/Provisor/internal/cml"
)

// Deps — ленивые фабрики зависимостей команд.
//
// Фабрики вызываются внутри RunE, после разбора PersistentFlags:
// к этому моменту значения --api-url, --project и --json уже известны.
type Deps struct {
	// ClientFn создаёт клиент CML API.
	ClientFn func() *cml.Client

	// ProjectFn возвращает ID целевого проекта.
	ProjectFn func() string

	// ConfigFn возвращает путь к jobs-конфигу (пустой — автопоиск).
	ConfigFn func() string

	// OutputFn создаёт форматтер вывода.
	OutputFn func() *Output

	// LoggerFn возвращает логгер.
	LoggerFn func() *slog.Logger
}
