//go:build opencv

package app

import (
	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
	"github.com/Brownie44l1/smartseva-api/internal/preprocess/opencv"
	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

func init() {
	normalizers["opencv"] = func(p preprocess.Params) triage.Normalizer { return opencv.NewNormalizer(p) }
}
