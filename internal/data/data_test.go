package data

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"order-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

var testLogger = log.NewStdLogger(io.Discard)

// newTestData 每个测试独立的内存 sqlite
func newTestData(t *testing.T) *Data {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	c := &conf.Bootstrap{
		Data: &conf.Data{
			Database: &conf.Database{
				Driver:       "sqlite",
				Source:       fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
				MaxOpenConns: 1,
				AutoMigrate:  true,
			},
		},
	}
	db, err := NewDB(c)
	require.NoError(t, err)
	d, cleanup, err := NewData(c, testLogger, db, nil, nil)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return d
}
