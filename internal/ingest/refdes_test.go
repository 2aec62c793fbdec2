package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRefDes(t *testing.T) {
	site, node, sensor, err := SplitRefDes("GI01SUMO-RII11-02-CTDBPP031")
	require.NoError(t, err)
	assert.Equal(t, "GI01SUMO", site)
	assert.Equal(t, "RII11", node)
	assert.Equal(t, "02-CTDBPP031", sensor, "the sensor part keeps its internal dash")
}

func TestSplitRefDes_Invalid(t *testing.T) {
	for _, refdes := range []string{"", "RS03AXBS", "RS03AXBS-LJ03A", "RS03AXBS--12-CTDPFB301"} {
		_, _, _, err := SplitRefDes(refdes)
		assert.Error(t, err, "refdes=%q", refdes)
	}
}

func TestJoinRefDes_RoundTrip(t *testing.T) {
	refdes := "RS03AXBS-LJ03A-12-CTDPFB301"
	site, node, sensor, err := SplitRefDes(refdes)
	require.NoError(t, err)
	assert.Equal(t, refdes, JoinRefDes(site, node, sensor))
}

func TestReading_Validate(t *testing.T) {
	valid := Reading{
		RefDes:   "RS03AXBS-LJ03A-12-CTDPFB301",
		Stream:   "ctdpf_optode_sample",
		Method:   "streamed",
		Count:    100,
		LastSeen: time.Now(),
	}
	assert.NoError(t, valid.Validate())

	missingRefDes := valid
	missingRefDes.RefDes = ""
	assert.ErrorIs(t, missingRefDes.Validate(), ErrMalformedReading)

	zeroTime := valid
	zeroTime.LastSeen = time.Time{}
	assert.ErrorIs(t, zeroTime.Validate(), ErrMalformedReading)
}
