//go:build linux

package platform

import "github.com/bluetuith-org/btdirectory/linux"

var bluezBackend Constructor = linux.NewBluezBackend
