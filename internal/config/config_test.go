package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/sentinel/internal/service"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestLoadAgent_YAMLMinimalDefaults(t *testing.T) {
	t.Setenv(EnvPort, "")
	p := writeFile(t, t.TempDir(), "agent.yaml", "critical_files: [/etc/hosts]\n")
	c, err := LoadAgent(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"/etc/hosts"}, c.CriticalFiles)
	assert.Equal(t, DefaultBackupDir, c.BackupDir)
	assert.Equal(t, 10*time.Second, c.ScanInterval())
	assert.Equal(t, 1.0, c.Thresholds.CPU)
	assert.Equal(t, 1.0, c.Thresholds.Memory)
	assert.Equal(t, ":5001", c.Addr())
	assert.Equal(t, 3*time.Second, c.ReportTimeout)
}

func TestLoadAgent_YAMLFull(t *testing.T) {
	data := `
critical_files:
  - /etc/passwd
  - /etc/ssh/sshd_config
services:
  - name: nginx
    process_pattern: "nginx: master"
    restart_command: systemctl restart nginx
  - name: sshd
    process_pattern: /usr/sbin/sshd
backup_dir: /var/lib/sentinel/backup
scan_interval_sec: 30
thresholds:
  cpu: 0.9
  memory: 0.85
backend_url: http://backend:4000
ml_url: http://ml:5002
api_token: file-token
listen: 127.0.0.1:7001
base_path: /api
history:
  - sqlite:///var/lib/sentinel/history.db
report_timeout: 5s
log:
  level: debug
  format: json
`
	p := writeFile(t, t.TempDir(), "agent.yml", data)
	c, err := LoadAgent(p)
	require.NoError(t, err)

	assert.Equal(t, []service.Spec{
		{Name: "nginx", ProcessPattern: "nginx: master", RestartCommand: "systemctl restart nginx"},
		{Name: "sshd", ProcessPattern: "/usr/sbin/sshd"},
	}, c.Services)
	assert.Equal(t, 30*time.Second, c.ScanInterval())
	assert.Equal(t, 0.9, c.Thresholds.CPU)
	assert.Equal(t, 0.85, c.Thresholds.Memory)
	assert.Equal(t, "127.0.0.1:7001", c.Addr())
	assert.Equal(t, "/api", c.BasePath)
	assert.Equal(t, "file-token", c.APIToken)
	assert.Equal(t, 5*time.Second, c.ReportTimeout)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.Len(t, c.History, 1)
}

func TestLoadAgent_TOML(t *testing.T) {
	data := `
critical_files = ["/etc/hosts"]
scan_interval_sec = 5

[[services]]
name = "redis"
process_pattern = "redis-server"
restart_command = "service redis start"
`
	p := writeFile(t, t.TempDir(), "agent.toml", data)
	c, err := LoadAgent(p)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.ScanInterval())
	require.Len(t, c.Services, 1)
	assert.Equal(t, "redis-server", c.Services[0].ProcessPattern)
}

func TestLoadAgent_EnvOverrides(t *testing.T) {
	p := writeFile(t, t.TempDir(), "agent.yaml", "backend_url: http://file\nml_url: http://file-ml\n")
	t.Setenv(EnvBackendURL, "http://env-backend")
	t.Setenv(EnvMLURL, "http://env-ml")
	t.Setenv(EnvPort, "6001")
	t.Setenv(EnvAPIToken, "env-token")

	c, err := LoadAgent(p)
	require.NoError(t, err)
	assert.Equal(t, "http://env-backend", c.BackendURL)
	assert.Equal(t, "http://env-ml", c.MLURL)
	assert.Equal(t, ":6001", c.Addr())
	assert.Equal(t, "env-token", c.APIToken)
}

func TestLoadAgent_FileTokenWinsOverEnv(t *testing.T) {
	p := writeFile(t, t.TempDir(), "agent.yaml", "api_token: from-file\n")
	t.Setenv(EnvAPIToken, "from-env")
	c, err := LoadAgent(p)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.APIToken)
}

func TestLoadAgent_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAgent(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrNoConfig)

	p := writeFile(t, dir, "bad.yaml", "critical_files: [unterminated\n")
	_, err = LoadAgent(p)
	assert.Error(t, err)

	p = writeFile(t, dir, "interval.yaml", "scan_interval_sec: 0\n")
	_, err = LoadAgent(p)
	assert.ErrorContains(t, err, "scan_interval_sec")

	p = writeFile(t, dir, "dup.yaml", "services:\n  - name: a\n  - name: a\n")
	_, err = LoadAgent(p)
	assert.ErrorContains(t, err, "duplicate")

}

func TestLoadAgent_UnnamedServicesAccepted(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "noname.yaml", "services:\n  - process_pattern: x\n  - restart_command: y\n")
	cfg, err := LoadAgent(p)
	require.NoError(t, err)
	assert.Equal(t, []service.Spec{{ProcessPattern: "x"}, {RestartCommand: "y"}}, cfg.Services)
}

func TestAgentConfigPath(t *testing.T) {
	t.Setenv(EnvAgentConfig, "")
	assert.Equal(t, DefaultAgentConfigPath, AgentConfigPath(""))
	t.Setenv(EnvAgentConfig, "/etc/sentinel/agent.yaml")
	assert.Equal(t, "/etc/sentinel/agent.yaml", AgentConfigPath(""))
	assert.Equal(t, "x.yaml", AgentConfigPath("x.yaml"))
}

func TestLoadDetector_Defaults(t *testing.T) {
	t.Setenv(EnvSigma, "")
	t.Setenv(EnvBackendURL, "")
	t.Setenv(EnvAPIToken, "")

	c, err := LoadDetector("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDetectorListen, c.Listen)
	assert.Equal(t, 30, c.Anomaly.Window)
	assert.Equal(t, 5, c.Anomaly.MinSamples)
	assert.Equal(t, 2.5, c.Anomaly.Sigma)
	assert.Equal(t, DefaultDetectorBackend, c.BackendURL)
}

func TestLoadDetector_FileAndEnv(t *testing.T) {
	p := writeFile(t, t.TempDir(), "detector.yaml", "listen: :9000\nwindow: 60\nsigma: 3\nhistory: [\"sqlite://:memory:\"]\n")
	t.Setenv(EnvSigma, "4.5")
	c, err := LoadDetector(p)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Listen)
	assert.Equal(t, 60, c.Anomaly.Window)
	assert.Equal(t, 4.5, c.Anomaly.Sigma)
	assert.Equal(t, []string{"sqlite://:memory:"}, c.History)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.env", "# comment\nA=1\nSHARED=from-a\n")
	b := writeFile(t, dir, "b.env", "export B=\"two words\"\nSHARED=from-b\n")

	pairs, err := LoadEnv([]string{a, b}, []string{"SHARED=inline", "C=3"})
	require.NoError(t, err)

	m := make(map[string]string)
	for _, kv := range pairs {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	assert.Equal(t, map[string]string{"A": "1", "B": "two words", "SHARED": "inline", "C": "3"}, m)
	assert.Len(t, pairs, 4)

	_, err = LoadEnv([]string{filepath.Join(dir, "nope.env")}, nil)
	assert.Error(t, err)

	_, err = LoadEnv(nil, []string{"NOEQUALS"})
	assert.Error(t, err)
}
