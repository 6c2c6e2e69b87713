package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/sirupsen/logrus"
)

// slowReportThreshold is read from REPORT_SLOW_MS (default 500).
func slowReportThreshold() time.Duration {
	return time.Duration(config.IntFromEnv("REPORT_SLOW_MS", 500)) * time.Millisecond
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra logrus.Fields) {
	elapsed := time.Since(started)
	if elapsed < slowReportThreshold() {
		return
	}
	fields := logrus.Fields{"field": "slow_report", "report": name, "ms": elapsed.Milliseconds()}
	if store, ok := utils.GetStoreIdFromContext(ctx); ok {
		fields["store_id"] = store
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	for k, v := range extra {
		fields[k] = v
	}
	config.GetLogger().WithFields(fields).Warn("report exceeded slow threshold")
}
