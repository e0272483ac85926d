package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/errs"
	"github.com/jpl-au/dms/internal/repo"
	"github.com/jpl-au/dms/internal/service"
)

// tempService opens a service over a fresh repository for examples.
func tempService() (service.Service, func()) {
	dir, err := os.MkdirTemp("", "dms-example-*")
	if err != nil {
		panic(err)
	}
	r, err := repo.Init(false, false, dir)
	if err != nil {
		panic(err)
	}
	svc, err := dms.Open(context.Background(), r, &config.Config{})
	if err != nil {
		panic(err)
	}
	return svc, func() {
		svc.Close()
		os.RemoveAll(dir)
	}
}

func Example_basicUsage() {
	svc, cleanup := tempService()
	defer cleanup()
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "ADL-1234.txt", strings.NewReader("Hello, World!"), "alice", service.IngestOptions{})
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Code, res.Revision)

	doc, err := svc.Fetch(ctx, res.Code, service.FetchOptions{User: "alice"})
	if err != nil {
		panic(err)
	}
	fmt.Println(doc.Filename, string(doc.Data))
	// Output:
	// ADL-1234 1
	// ADL-1234.txt Hello, World!
}

func Example_allocate() {
	svc, cleanup := tempService()
	defer cleanup()
	ctx := context.Background()

	for range 2 {
		res, err := svc.Ingest(ctx, "scan.txt", strings.NewReader("scanned"), "alice",
			service.IngestOptions{Allocate: true, Rule: 1})
		if err != nil {
			panic(err)
		}
		fmt.Println(res.Code)
	}
	// Output:
	// ADL-1001
	// ADL-1002
}

func Example_errorKinds() {
	svc, cleanup := tempService()
	defer cleanup()

	_, err := svc.Fetch(context.Background(), "ADL-9999", service.FetchOptions{})
	fmt.Println(errors.Is(err, errs.ErrNotFound), errs.KindOf(err))
	// Output:
	// true not_found
}
