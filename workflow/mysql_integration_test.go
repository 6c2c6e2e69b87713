package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/testutil"
)

func TestMySQL_ConcurrentRunsKeepOneRecordPerOrder(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "recon_test")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	day := testutil.Date(t, "2024-07-01")
	for i := 0; i < 200; i++ {
		store := fmt.Sprintf("S%d", i%4)
		testutil.SeedOrder(t, db, fmt.Sprintf("O-%03d", i), store, day, fmt.Sprintf("%d.25", 10+i))
	}
	testutil.SeedReport(t, db, "R-S0", "S0", day, "1234.56", "O-000", "O-004", "O-008")

	// Separate reconcilers do not share the in-process mutex, so only GET_LOCK serializes them.
	opts := config.DefaultReconciliationOptions()
	opts.InsertBatchSize = 37
	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			storeId := ""
			if i%2 == 1 {
				storeId = "S0"
			}
			_, errs[i] = NewGormReconciler(db, quietLogger(), opts).ReconcileDate(context.Background(), day, storeId)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var dupes int64
	if err := db.Raw(`SELECT COUNT(*) FROM (SELECT order_id FROM reconciliation_records WHERE reconciliation_date = ?
		GROUP BY order_id HAVING COUNT(*) > 1) d`, day).Scan(&dupes).Error; err != nil {
		t.Fatalf("count duplicates: %v", err)
	}
	if dupes != 0 {
		t.Fatalf("expected no duplicate ledger rows, found %d orders duplicated", dupes)
	}
	n, err := models.CountReconciliationRecords(context.Background(), db, day, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 200 {
		t.Fatalf("expected 200 ledger rows, got %d", n)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("recon-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=recon_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
