package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/bgg"
	"github.com/nraw/gamescanner/pkg/resolve"
	"github.com/nraw/gamescanner/pkg/search"
	"github.com/nraw/gamescanner/pkg/storage"
	"github.com/spf13/viper"
)

func newProvider() (search.Provider, error) {
	return search.New(search.Config{
		Provider:     viper.GetString("search.provider"),
		BraveAPIKey:  viper.GetString("brave.api_key"),
		GoogleAPIKey: viper.GetString("google.api_key"),
		GoogleCX:     viper.GetString("google.cx"),
		Timeout:      viper.GetDuration("search.timeout"),
		Proxy:        viper.GetString("proxy"),
		Logger:       utils.Log,
	})
}

func newResolver() (*resolve.Resolver, error) {
	provider, err := newProvider()
	if err != nil {
		return nil, err
	}

	var badWords []string
	if words := viper.GetStringSlice("resolve.bad_words"); len(words) > 0 {
		badWords = words
	}
	return resolve.NewResolver(provider, resolve.Options{
		MemoSize: viper.GetInt("resolve.memo_size"),
		BadWords: badWords,
		Logger:   utils.Log,
	})
}

func dbFilePath() (string, error) {
	return utils.GetAbsDBPath(viper.GetString("db.path"))
}

func openDB() (*storage.DB, error) {
	path, err := dbFilePath()
	if err != nil {
		return nil, err
	}
	utils.Log.Debugf("Using database %s", path)
	return storage.Open(path, storage.DefaultDBTimeout)
}

// openExistingDB is used by read-only commands that should not create an
// empty database as a side effect.
func openExistingDB() (*storage.DB, error) {
	path, err := dbFilePath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}
	return storage.Open(path, storage.DefaultDBTimeout)
}

// withDBLock runs fn while holding the database write lock.
func withDBLock(ctx context.Context, fn func() error) error {
	path, err := dbFilePath()
	if err != nil {
		return err
	}
	lock, err := utils.NewDBLock(path)
	if err != nil {
		return err
	}
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			utils.Log.Warnf("%v", err)
		}
	}()
	return fn()
}

func newBGGClient() (*bgg.Client, error) {
	return bgg.New(bgg.Config{
		Username:    viper.GetString("bgg.username"),
		Password:    viper.GetString("bgg.password"),
		APIKey:      viper.GetString("bgg.api_key"),
		Proxy:       viper.GetString("proxy"),
		Concurrency: viper.GetInt("bgg.concurrency"),
		Logger:      utils.Log,
	})
}

// gameID returns arg when it is already an id, otherwise resolves it as a
// game name.
func gameID(ctx context.Context, resolver *resolve.Resolver, arg string) (string, error) {
	if utils.IsBarcode(arg) {
		return arg, nil
	}
	id, err := resolver.Resolve(ctx, arg)
	if err != nil {
		return "", fmt.Errorf("could not find %q on BoardGameGeek: %w", arg, err)
	}
	utils.Log.Infof("%q is %s", arg, resolve.GameURL(id))
	return id, nil
}
