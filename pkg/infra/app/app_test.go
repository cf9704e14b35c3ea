package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"
)

type testOptions struct {
	Reindex struct {
		BatchSize int    `mapstructure:"batch-size"`
		Alias     string `mapstructure:"alias"`
	} `mapstructure:"reindex"`
	completed bool
}

func (o *testOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("reindex")
	fs.IntVar(&o.Reindex.BatchSize, "reindex.batch-size", 500, "batch size")
	fs.StringVar(&o.Reindex.Alias, "reindex.alias", "current", "alias")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	var errs []error
	if o.Reindex.BatchSize <= 0 {
		errs = append(errs, assert.AnError)
	}
	return utilerrors.NewAggregate(errs)
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "discovery-search.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("reindex:\n  batch-size: 20\n  alias: ${TEST_ALIAS}\n"), 0o600))
	t.Setenv("TEST_ALIAS", "from_env")

	opts := &testOptions{}
	ran := false
	a := NewApp(
		WithName("discovery-search"),
		WithOptions(opts),
		WithNoVersion(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--config", cfg, "--reindex.batch-size=7"})
	require.NoError(t, cmd.Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	// 命令行优先于配置文件
	assert.Equal(t, 7, opts.Reindex.BatchSize)
	assert.Equal(t, "from_env", opts.Reindex.Alias)
}

func TestValidateFailureStopsRun(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	opts := &testOptions{}
	ran := false
	a := NewApp(
		WithName("discovery-search-test"),
		WithOptions(opts),
		WithNoVersion(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--reindex.batch-size=0"})
	assert.Error(t, cmd.Execute())
	assert.False(t, ran)
}

func TestGlobalFlags(t *testing.T) {
	a := NewApp(WithName("x"), WithNoVersion())
	fs := a.Command().PersistentFlags()
	assert.NotNil(t, fs.Lookup("config"))
	assert.NotNil(t, fs.Lookup("help"))
	assert.Nil(t, fs.Lookup("version"))
}
