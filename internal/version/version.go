// Package version хранит сведения о сборке marketplace-service,
// проставляемые при сборке:
//
//	go build -ldflags "-X .../internal/version.version=v1.2.0 \
//	  -X .../internal/version.commit=$(git rev-parse --short HEAD) \
//	  -X .../internal/version.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// String отдаёт строку для логов и health-ответа.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
