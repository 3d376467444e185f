// Package vmrun is the WASM execution contract boundary (spec §3.9):
// contract code, a storage accessor, a gas meter, an event bus, and an
// input buffer go in; an accept/reject verdict and the gas consumed come
// out, while the contract's storage writes land in the accessor and its
// events on the bus. Grounded in the teacher's
// internal/vm/vm.go ExecuteContract lifecycle (fresh wasmer engine/store
// per call, host function imports bound through a per-call environment
// struct) generalized from the teacher's direct *state.State host access
// to the write-log/gas-meter/event-bus contract SPEC_FULL.md §3.9
// describes.
package vmrun

import (
	"context"
	"errors"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/events"
	"github.com/empower1/ledger/internal/gas"
	"github.com/empower1/ledger/internal/storage"
)

var (
	ErrWASMCompile       = errors.New("vmrun: failed to compile wasm module")
	ErrWASMInstantiate   = errors.New("vmrun: failed to instantiate wasm module")
	ErrWASMExportMissing = errors.New("vmrun: missing wasm export")
	ErrWASMExecution     = errors.New("vmrun: wasm execution trapped")
	ErrOutOfGas          = gas.ErrOutOfGas
)

// Result is the outcome of one contract invocation (spec §3.9).
type Result struct {
	Accepted bool
	GasUsed  uint64
}

// Balances is the subset of account state host functions may read or
// move funds against, kept as a narrow interface so vmrun never reaches
// into a concrete ledger type (teacher's HostFunctionEnvironment held a
// raw *state.State; this is the same seam narrowed to what contracts
// actually need, spec §3.9).
type Balances interface {
	Balance(addr address.Address) (uint64, error)
	Transfer(from, to address.Address, amount uint64) error
}

// BlockContext supplies the ambient block data host functions expose to
// contracts (teacher's BlockchainGetBlockTimestamp stub, generalized to
// read real values instead of time.Now()).
type BlockContext struct {
	Height    uint64
	Timestamp int64
}

// VMService executes WASM contract code against a storage accessor, gas
// meter, and event bus. One VMService is reused across calls; a fresh
// wasmer engine and store are created per execution for isolation,
// exactly as the teacher's ExecuteContract does.
type VMService struct{}

// NewVMService constructs a VMService. It carries no state: the teacher
// held a *state.State field for host functions to close over, but here
// every per-call dependency (storage, gas, events, balances) is passed
// to Execute explicitly instead, so a single VMService is safe to share.
func NewVMService() *VMService {
	return &VMService{}
}

// Execute runs code's exported "run" function against view, metering
// gas through meter and collecting any events the contract emits onto
// bus. input is passed to the contract as its call data. Execute never
// mutates view's committed backing store directly; all writes a
// contract makes land in view itself (a storage.WriteLog transaction
// layer), so a rejected result can be discarded by the caller without
// touching committed state (spec §3.9, §4.1).
func (vms *VMService) Execute(
	ctx context.Context,
	code []byte,
	view storage.Accessor,
	meter *gas.Meter,
	bus *events.Bus,
	contract address.Address,
	caller address.Address,
	block BlockContext,
	balances Balances,
	input []byte,
) (result Result, err error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	defer store.Close()

	module, err := wasmer.NewModule(store, code)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrWASMCompile, err)
	}
	defer module.Close()

	env := &hostEnv{
		view:     view,
		meter:    meter,
		bus:      bus,
		contract: contract,
		caller:   caller,
		block:    block,
		balances: balances,
	}

	importObject := wasmer.NewImportObject()
	importObject.Register("env", env.imports(store))

	const baseExecutionCost = 100
	if errGas := meter.Consume(baseExecutionCost); errGas != nil {
		return Result{GasUsed: meter.Consumed()}, ErrOutOfGas
	}

	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return Result{GasUsed: meter.Consumed()}, fmt.Errorf("%w: %v", ErrWASMInstantiate, err)
	}
	defer instance.Close()

	memory, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return Result{GasUsed: meter.Consumed()}, fmt.Errorf("%w: exported memory: %v", ErrWASMExportMissing, err)
	}
	env.memory = memory
	env.instance = instance

	run, err := instance.Exports.GetFunction("run")
	if err != nil {
		return Result{GasUsed: meter.Consumed()}, fmt.Errorf("%w: 'run': %v", ErrWASMExportMissing, err)
	}

	inPtr, inLen, err := env.writeInput(input)
	if err != nil {
		return Result{GasUsed: meter.Consumed()}, err
	}

	raw, err := run(inPtr, inLen)
	if err != nil {
		if meter.Exhausted() {
			return Result{GasUsed: meter.Consumed()}, ErrOutOfGas
		}
		if _, ok := err.(*wasmer.TrapError); ok {
			return Result{GasUsed: meter.Consumed()}, fmt.Errorf("%w: %v", ErrWASMExecution, err)
		}
		return Result{GasUsed: meter.Consumed()}, fmt.Errorf("%w: %v", ErrWASMExecution, err)
	}

	accepted := false
	if code, ok := raw.(int32); ok {
		accepted = code == 0
	}

	return Result{Accepted: accepted, GasUsed: meter.Consumed()}, nil
}

// hostEnv is the per-call environment closed over by every host function
// registered under the WASM module's "env" import namespace — the
// write-log/gas-meter/event-bus analogue of the teacher's
// HostFunctionEnvironment (internal/vm/host_functions.go), narrowed to the
// Balances/storage.Accessor seams Execute is given instead of a raw
// *state.State.
type hostEnv struct {
	view     storage.Accessor
	meter    *gas.Meter
	bus      *events.Bus
	contract address.Address
	caller   address.Address
	block    BlockContext
	balances Balances

	memory   *wasmer.Memory
	instance *wasmer.Instance
}

const (
	hostCallSuccess   int32 = 0
	hostCallFailure   int32 = 1
	hostCallBadMemory int32 = 3
	hostCallOutOfGas  int32 = 5
)

// imports builds the "env" namespace's host functions, one
// wasmer.NewFunctionWithEnvironment per export, matching the teacher's
// ExecuteContract registration (internal/vm/vm.go): a map keyed by the
// name the WASM module imports, each function closing over env through
// wasmer's environment-passing convention rather than a Go closure, so
// wasmer can pass it back into each call.
func (env *hostEnv) imports(store *wasmer.Store) map[string]wasmer.IntoExtern {
	i32 := wasmer.I32
	return map[string]wasmer.IntoExtern{
		"storage_get": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32, i32), wasmer.NewValueTypes(i32)),
			env, hostStorageGet,
		),
		"storage_set": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32, i32), wasmer.NewValueTypes(i32)),
			env, hostStorageSet,
		),
		"log_message": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32), wasmer.NewValueTypes()),
			env, hostLogMessage,
		),
		"emit_event": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32, i32), wasmer.NewValueTypes()),
			env, hostEmitEvent,
		),
		"get_caller": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32), wasmer.NewValueTypes(i32)),
			env, hostGetCaller,
		),
		"get_balance": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(wasmer.I64)),
			env, hostGetBalance,
		),
		"get_block_height": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(wasmer.I64)),
			env, hostGetBlockHeight,
		),
		"get_block_timestamp": wasmer.NewFunctionWithEnvironment(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(wasmer.I64)),
			env, hostGetBlockTimestamp,
		),
	}
}

// bounds reports whether [ptr, ptr+n) lies inside env's linear memory.
func (env *hostEnv) bounds(ptr, n int32) bool {
	if ptr < 0 || n < 0 {
		return false
	}
	data := env.memory.Data()
	return int64(ptr)+int64(n) <= int64(len(data))
}

// readMemory copies n bytes starting at ptr out of WASM linear memory.
func (env *hostEnv) readMemory(ptr, n int32) ([]byte, error) {
	if !env.bounds(ptr, n) {
		return nil, fmt.Errorf("vmrun: memory access out of bounds ptr=%d len=%d", ptr, n)
	}
	out := make([]byte, n)
	copy(out, env.memory.Data()[ptr:ptr+n])
	return out, nil
}

// writeMemory copies b into WASM linear memory at ptr, never writing past
// capacity (the contract is expected to pre-size its buffer; a short write
// still reports the true length so the contract can retry with a bigger
// buffer, matching the teacher's BlockchainGetStorage truncate-and-report
// convention).
func (env *hostEnv) writeMemory(ptr, capacity int32, b []byte) (int32, error) {
	n := int32(len(b))
	toCopy := n
	if toCopy > capacity {
		toCopy = capacity
	}
	if toCopy > 0 {
		if !env.bounds(ptr, toCopy) {
			return 0, fmt.Errorf("vmrun: memory access out of bounds ptr=%d len=%d", ptr, toCopy)
		}
		copy(env.memory.Data()[ptr:ptr+toCopy], b[:toCopy])
	}
	return n, nil
}

// writeInput reserves a scratch region at the start of linear memory and
// copies input into it, returning the (ptr, len) pair passed as the WASM
// "run" export's argument. Contracts under this harness never call an
// exported allocator of their own (spec §3.9 keeps the contract ABI to a
// single "run(ptr, len) -> i32" export with no import-side allocation
// negotiation), so Execute owns a fixed low offset instead, growing
// memory if the contract's linear memory was not declared large enough.
func (env *hostEnv) writeInput(input []byte) (int32, int32, error) {
	const inputOffset = 8
	needed := inputOffset + len(input)

	data := env.memory.Data()
	for len(data) < needed {
		if _, err := env.memory.Grow(1); err != nil {
			return 0, 0, fmt.Errorf("vmrun: growing memory for input: %w", err)
		}
		data = env.memory.Data()
	}

	copy(data[inputOffset:inputOffset+len(input)], input)
	return int32(inputOffset), int32(len(input)), nil
}

func hostStorageGet(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(50); err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallOutOfGas)}, nil
	}

	keyPtr, keyLen := args[0].I32(), args[1].I32()
	retPtr, retLen := args[2].I32(), args[3].I32()

	key, err := env.readMemory(keyPtr, keyLen)
	if err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallBadMemory)}, nil
	}

	value, ok, err := env.view.Read(string(key))
	if err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallFailure)}, nil
	}
	if !ok {
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	}

	if err := env.meter.Consume(uint64(len(value))); err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallOutOfGas)}, nil
	}

	n, err := env.writeMemory(retPtr, retLen, value)
	if err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallBadMemory)}, nil
	}
	return []wasmer.Value{wasmer.NewI32(n)}, nil
}

func hostStorageSet(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(100); err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallOutOfGas)}, nil
	}

	keyPtr, keyLen := args[0].I32(), args[1].I32()
	valPtr, valLen := args[2].I32(), args[3].I32()

	key, err := env.readMemory(keyPtr, keyLen)
	if err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallBadMemory)}, nil
	}
	value, err := env.readMemory(valPtr, valLen)
	if err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallBadMemory)}, nil
	}

	if err := env.meter.Consume(uint64(keyLen + valLen)); err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallOutOfGas)}, nil
	}

	if err := env.view.Write(string(key), value); err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallFailure)}, nil
	}
	return []wasmer.Value{wasmer.NewI32(hostCallSuccess)}, nil
}

func hostLogMessage(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(10); err != nil {
		return []wasmer.Value{}, err
	}
	msgPtr, msgLen := args[0].I32(), args[1].I32()
	msg, err := env.readMemory(msgPtr, msgLen)
	if err != nil {
		return []wasmer.Value{}, err
	}
	env.bus.Emit(events.New(events.TypeTransfer, events.LevelInfo, map[string]string{
		"contract": env.contract.String(),
		"message":  string(msg),
	}))
	return []wasmer.Value{}, nil
}

func hostEmitEvent(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(50); err != nil {
		return []wasmer.Value{}, err
	}
	topicPtr, topicLen := args[0].I32(), args[1].I32()
	dataPtr, dataLen := args[2].I32(), args[3].I32()

	topic, err := env.readMemory(topicPtr, topicLen)
	if err != nil {
		return []wasmer.Value{}, err
	}
	data, err := env.readMemory(dataPtr, dataLen)
	if err != nil {
		return []wasmer.Value{}, err
	}

	if err := env.meter.Consume(uint64(topicLen + dataLen)); err != nil {
		return []wasmer.Value{}, err
	}

	env.bus.Emit(events.New(events.TypeTransfer, events.LevelInfo, map[string]string{
		"contract": env.contract.String(),
		"topic":    string(topic),
		"data":     string(data),
	}))
	return []wasmer.Value{}, nil
}

func hostGetCaller(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(20); err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallOutOfGas)}, nil
	}
	retPtr, retLen := args[0].I32(), args[1].I32()
	n, err := env.writeMemory(retPtr, retLen, env.caller.Bytes())
	if err != nil {
		return []wasmer.Value{wasmer.NewI32(hostCallBadMemory)}, nil
	}
	return []wasmer.Value{wasmer.NewI32(n)}, nil
}

func hostGetBalance(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(100); err != nil {
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	}
	bal, err := env.balances.Balance(env.contract)
	if err != nil {
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	}
	return []wasmer.Value{wasmer.NewI64(bal)}, nil
}

func hostGetBlockHeight(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(5); err != nil {
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	}
	return []wasmer.Value{wasmer.NewI64(env.block.Height)}, nil
}

func hostGetBlockTimestamp(envPtr interface{}, args []wasmer.Value) ([]wasmer.Value, error) {
	env := envPtr.(*hostEnv)
	if err := env.meter.Consume(5); err != nil {
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	}
	return []wasmer.Value{wasmer.NewI64(env.block.Timestamp)}, nil
}
