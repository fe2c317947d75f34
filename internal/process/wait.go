package process

import (
	"github.com/sourcegraph/conc"

	"tracebench/pkg/benchtypes"
)

// WaitBoth blocks until both processes have terminated, in whatever order
// they finish, and returns their statuses in argument order.
func WaitBoth(a, b Handle) (benchtypes.ExitStatus, benchtypes.ExitStatus) {
	var sa, sb benchtypes.ExitStatus

	var wg conc.WaitGroup
	wg.Go(func() { sa = a.Wait() })
	wg.Go(func() { sb = b.Wait() })
	wg.Wait()

	return sa, sb
}
