package integrations_test

import (
	"errors"
	"fmt"

	"github.com/matzehuels/cargo-upgrade/pkg/cache"
	"github.com/matzehuels/cargo-upgrade/pkg/integrations"
)

func ExampleNewClient() {
	// A client without persistent caching, as used by --no-cache.
	client := integrations.NewClient(cache.NewNullCache(), "crates:", 0, map[string]string{
		"User-Agent": "example/1.0",
	})
	fmt.Println(client != nil)
	// Output:
	// true
}

func ExampleErrNotFound() {
	err := fmt.Errorf("%w: crate docopt", integrations.ErrNotFound)
	fmt.Println(errors.Is(err, integrations.ErrNotFound))
	// Output:
	// true
}
