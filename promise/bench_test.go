package promise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func BenchmarkPromiseAllReturnIntoSlice(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		returnAll := All(
			New(returnInt(7)),
			New(returnInt(8)),
			New(returnInt(9)),
			New(returnInt(10)),
			New(returnInt(11)),
		)

		returnSlice := Then(returnAll, func(vals []int) ([]int, error) {
			return vals, nil
		})

		values, err := returnSlice.Wait()
		require.Nil(b, err)
		require.EqualValues(b, []int{7, 8, 9, 10, 11}, values)
	}
}

func BenchmarkSyncSlicesWithChannels(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {

		values := []int{}
		valueChan := make(chan int)

		for _, v := range []int{7, 8, 9, 10, 11} {
			go func(v int) {
				valueChan <- v
			}(v)
		}

		for i := 0; i < 5; i++ {
			values = append(values, <-valueChan)
		}

		require.ElementsMatch(b, []int{7, 8, 9, 10, 11}, values)
	}
}
