package handlers

import (
	"github.com/spf13/viper"
)

var maxEvidenceBytes int

func init() {
	viper.SetDefault("OPS_MAX_EVIDENCE_BYTES", 1<<20)
	viper.AutomaticEnv()

	maxEvidenceBytes = viper.GetInt("OPS_MAX_EVIDENCE_BYTES")
}
