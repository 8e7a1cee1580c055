package base

// #cgo LDFLAGS: -lstdc++ -ltorch -lc10 -ltorch_cpu
// #cgo CFLAGS: -I${SRCDIR} -O3 -D_GLIBCXX_USE_CXX11_ABI=1
// #cgo CXXFLAGS: -std=c++17 -I${SRCDIR} -O3 -D_GLIBCXX_USE_CXX11_ABI=1 -Wno-deprecated-declarations
// #include "seed.h"
import "C"

// ManualSeed seeds libtorch random generators (CPU and CUDA).
// Variables initialized afterwards are reproducible.
func ManualSeed(seed int64) {
	C.semseg_manual_seed(C.int64_t(seed))
}
