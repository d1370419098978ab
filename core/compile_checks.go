package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ OrderStore             = (*MemoryOrderStore)(nil)
	_ OrderReader            = (*MemoryOrderStore)(nil)
	_ Catalog                = (*StaticCatalog)(nil)
	_ ReferenceGenerator     = (*MonotonicReferenceGenerator)(nil)
	_ SignatureVerifier      = RejectAllVerifier{}
	_ ProvisioningDispatcher = NopProvisioningDispatcher{}
	_ MetricsRecorder        = NopMetricsRecorder{}
	_ OrderLifecycle         = (*Service)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
