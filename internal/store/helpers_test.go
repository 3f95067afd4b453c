package store_test

import (
	"errors"
	"os"

	"github.com/matgreaves/tracequeryd/internal/store"
)

func asStoreError(err error, target **store.Error) bool {
	return errors.As(err, target)
}

func mkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func writeFile(t interface{ Fatal(...any) }, path, contents string) {
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}
