package email

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandAnalyzer/src/config"
	"BandAnalyzer/src/storage"
)

const rawMessage = "From: exporter@example.com\r\n" +
	"To: analyst@example.com\r\n" +
	"Subject: =?GBK?B?x/jT8rGouOY=?= weekly\r\n" +
	"Date: Mon, 05 Jan 2026 14:00:00 +1300\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/csv\r\n" +
	"Content-Disposition: attachment; filename=\"zones.csv\"\r\n" +
	"\r\n" +
	",CO2\r\n" +
	",Office\r\n" +
	" 01/05 Jan 05 02:00 PM,650\r\n" +
	"--XYZ--\r\n"

type fakeMailService struct {
	emails       []*Email
	connectErr   error
	disconnected bool
}

func (f *fakeMailService) Connect() error { return f.connectErr }
func (f *fakeMailService) Disconnect()    { f.disconnected = true }
func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) {
	return f.emails, nil
}

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "mail.log"))
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestParseMessage(t *testing.T) {
	var warnings []string
	msg, err := ParseMessage(strings.NewReader(rawMessage), func(s string) { warnings = append(warnings, s) })
	require.NoError(t, err)

	assert.Equal(t, "区域报告 weekly", msg.Subject)
	assert.Equal(t, "exporter@example.com", msg.From)
	assert.Equal(t, 2026, msg.Date.Year())
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "zones.csv", msg.Attachments[0].Filename)
	assert.Contains(t, string(msg.Attachments[0].Content), "02:00 PM,650")
	assert.Empty(t, warnings)
}

func TestFilterLatestTargetEmail(t *testing.T) {
	now := time.Now()
	emails := []*Email{
		{UID: 1, Subject: "Zone band export", Date: now.Add(-2 * time.Hour)},
		{UID: 2, Subject: "lunch", Date: now},
		{UID: 3, Subject: "Zone band export", Date: now.Add(-time.Hour)},
	}
	got := filterLatestTargetEmail(emails, "band export")
	require.NotNil(t, got)
	assert.Equal(t, uint32(3), got.UID)

	assert.Nil(t, filterLatestTargetEmail(emails, "missing"))
}

func TestCheckAndProcessEmails(t *testing.T) {
	logger := newTestLogger(t)

	svc := &fakeMailService{emails: []*Email{{UID: 7, Subject: "export", Date: time.Now()}}}
	got, err := CheckAndProcessEmails(svc, "export", logger)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(7), got.UID)
	assert.True(t, svc.disconnected)

	got, err = CheckAndProcessEmails(&fakeMailService{}, "export", logger)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = CheckAndProcessEmails(&fakeMailService{connectErr: errors.New("refused")}, "export", logger)
	assert.ErrorContains(t, err, "refused")
}

func TestNewReportMessage(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Email.Username = "monitor@example.com"
	cfg.SendEmail.Username = "sender@example.com"

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx"), 0644))

	e, err := newReportMessage(cfg, "3 zones", []string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{"monitor@example.com"}, e.To)
	assert.Equal(t, "Band Analyzer <sender@example.com>", e.From)
	assert.Equal(t, "Zone band report", e.Subject)
	assert.Equal(t, "3 zones", string(e.Text))
	assert.Len(t, e.Attachments, 1)

	cfg.SendEmail.To = []string{"a@example.com", "b@example.com"}
	e, err = newReportMessage(cfg, "", nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.SendEmail.To, e.To)

	_, err = newReportMessage(cfg, "", []string{filepath.Join(t.TempDir(), "missing.xlsx")})
	assert.Error(t, err)
}

func TestDecodeHeaderPassThrough(t *testing.T) {
	assert.Equal(t, "plain subject", decodeHeader("plain subject"))
	assert.Equal(t, "=?bogus", decodeHeader("=?bogus"))
}
