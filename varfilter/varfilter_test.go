package varfilter_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biocore/svcall/varfilter"
)

func TestBankAppliesOnlyCatchingFilters(t *testing.T) {
	bank, err := varfilter.NewBank(
		[]string{varfilter.LowQualityID, varfilter.MappingQualityID, varfilter.QualityOverDepthID},
		varfilter.DefaultThresholds(),
	)
	require.NoError(t, err)

	caught := bank.Apply(varfilter.RecordStats{
		PP:      10, // below default 20 -> LQ catches
		MQ:      40, // above default 20 -> MQ passes
		QD:      8,  // above default 6 -> QD passes
		IsIndel: false,
	})
	require.Equal(t, []string{varfilter.LowQualityID}, caught)
}

func TestBankPassesCleanCall(t *testing.T) {
	bank, err := varfilter.NewBank(
		[]string{varfilter.LowQualityID, varfilter.MappingQualityID},
		varfilter.DefaultThresholds(),
	)
	require.NoError(t, err)

	caught := bank.Apply(varfilter.RecordStats{PP: 99, MQ: 60})
	require.Empty(t, caught)
}

func TestBankUnknownFilterIDErrors(t *testing.T) {
	_, err := varfilter.NewBank([]string{"NOPE"}, varfilter.DefaultThresholds())
	require.Error(t, err)
}

func TestBankFilterDescsSortedByID(t *testing.T) {
	bank, err := varfilter.NewBank(
		[]string{varfilter.StrandBiasID, varfilter.AlleleBiasID},
		varfilter.DefaultThresholds(),
	)
	require.NoError(t, err)

	descs := bank.FilterDescs()
	require.Len(t, descs, 2)
	require.Equal(t, varfilter.AlleleBiasID, descs[0].ID)
	require.Equal(t, varfilter.StrandBiasID, descs[1].ID)
}

func TestQualityOverDepthFilterUsesIndelThreshold(t *testing.T) {
	bank, err := varfilter.NewBank([]string{varfilter.QualityOverDepthID}, varfilter.Thresholds{
		MinSNPQualOverDepth:   10,
		MinIndelQualOverDepth: 2,
	})
	require.NoError(t, err)

	// QD of 5 fails the SNP threshold but passes the indel threshold.
	require.Empty(t, bank.Apply(varfilter.RecordStats{QD: 5, IsIndel: true}))
	require.NotEmpty(t, bank.Apply(varfilter.RecordStats{QD: 5, IsIndel: false}))
}

func TestNaNAnnotationNeverCatches(t *testing.T) {
	bank, err := varfilter.NewBank([]string{varfilter.LowQualityID}, varfilter.DefaultThresholds())
	require.NoError(t, err)

	require.Empty(t, bank.Apply(varfilter.RecordStats{PP: math.NaN()}))
}

func TestStrandBiasPValueDetectsImbalance(t *testing.T) {
	// All variant support from the forward strand only: strongly biased.
	biased := varfilter.StrandBiasPValue(50, 50, 40, 0)
	unbiased := varfilter.StrandBiasPValue(50, 50, 20, 20)
	require.Less(t, biased, unbiased)
}

func TestAlleleBiasPValueLowForFewAltReads(t *testing.T) {
	p := varfilter.AlleleBiasPValue(2, 100, 0.5)
	require.Less(t, p, 0.01)
}
