package datarecording

import "github.com/sarchlab/membridge/sim/hooking"

var (
	_ DataRecorder = (*SQLiteWriter)(nil)
	_ DataRecorder = (*ClickHouseWriter)(nil)
	_ hooking.Hook = (*RequestRecorder)(nil)
)
