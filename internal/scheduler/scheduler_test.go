package scheduler

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/config"
)

func intPtr(n int) *int { return &n }

func sixFieldParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

func TestEverySeconds(t *testing.T) {
	assert.Equal(t, "*/30 * * * * *", everySeconds(30))
	assert.Equal(t, "0 */5 * * * *", everySeconds(300))
	assert.Equal(t, "0 */30 * * * *", everySeconds(1800))
	assert.Equal(t, "0 */60 * * * *", everySeconds(3600))
}

// the generated specs must actually fire at the configured period, not
// just parse
func TestEverySecondsCadence(t *testing.T) {
	parser := sixFieldParser()
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		seconds int
		want    time.Duration
	}{
		{10, 10 * time.Second},
		{30, 30 * time.Second},
		{300, 5 * time.Minute},
		{1800, 30 * time.Minute},
		{3600, time.Hour},
	} {
		sched, err := parser.Parse(everySeconds(tc.seconds))
		require.NoError(t, err, "seconds=%d", tc.seconds)

		first := sched.Next(base)
		second := sched.Next(first)
		assert.Equal(t, tc.want, second.Sub(first), "seconds=%d", tc.seconds)
	}
}

func TestNotificationExprWeekly(t *testing.T) {
	expr, err := notificationExpr(config.NotificationSchedule{
		Type: "weekly", Weekday: intPtr(2), Hour: 10, Minute: 30, Seconds: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "0 30 10 * * 2", expr)

	_, err = sixFieldParser().Parse(expr)
	assert.NoError(t, err)
}

func TestNotificationExprMonthly(t *testing.T) {
	expr, err := notificationExpr(config.NotificationSchedule{
		Type: "monthly", Day: intPtr(15), Hour: 9, Minute: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "0 0 9 15 * *", expr)
}

func TestNotificationExprDefaults(t *testing.T) {
	expr, err := notificationExpr(config.NotificationSchedule{Type: "weekly", Hour: 8})
	require.NoError(t, err)
	assert.Equal(t, "0 0 8 * * 0", expr)

	expr, err = notificationExpr(config.NotificationSchedule{Type: "monthly", Hour: 8})
	require.NoError(t, err)
	assert.Equal(t, "0 0 8 1 * *", expr)
}

func TestNotificationExprInvalid(t *testing.T) {
	_, err := notificationExpr(config.NotificationSchedule{Type: "daily"})
	assert.Error(t, err)

	_, err = notificationExpr(config.NotificationSchedule{Type: "weekly", Weekday: intPtr(9)})
	assert.Error(t, err)

	_, err = notificationExpr(config.NotificationSchedule{Type: "monthly", Day: intPtr(32)})
	assert.Error(t, err)

	expr, err := notificationExpr(config.NotificationSchedule{})
	require.NoError(t, err)
	assert.Empty(t, expr)
}
