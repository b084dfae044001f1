//go:build !no_automation

package automation

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/device"
)

const maxHandlersPerScript = 100

// registerPurifierModule registers the `purifier` global table.
func registerPurifierModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()
	fns := map[string]lua.LGFunction{
		"on":             func(L *lua.LState) int { return purifierOn(L, vm) },
		"set_mode":       func(L *lua.LState) int { return purifierSetMode(L, e) },
		"set_percentage": func(L *lua.LState) int { return purifierSetPercentage(L, e) },
		"set_power":      func(L *lua.LState) int { return purifierSetPower(L, e) },
		"set_brightness": func(L *lua.LState) int { return purifierSetBrightness(L, e) },
		"state":          func(L *lua.LState) int { return purifierState(L, e) },
		"after":          func(L *lua.LState) int { return purifierAfter(L, vm, e) },
		"log":            func(L *lua.LState) int { return purifierLog(L, e) },
	}
	for name, fn := range fns {
		mod.RawSetString(name, L.NewFunction(fn))
	}
	L.SetGlobal("purifier", mod)
}

// purifier.on(event_type, [filter], callback)
func purifierOn(L *lua.LState, vm *scriptVM) int {
	h := luaEventHandler{eventType: L.CheckString(1)}
	if L.GetTop() >= 3 {
		filter := L.CheckTable(2)
		h.filter = make(map[string]string)
		filter.ForEach(func(k, v lua.LValue) {
			h.filter[k.String()] = v.String()
		})
		h.fn = L.CheckFunction(3)
	} else {
		h.fn = L.CheckFunction(2)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	return 0
}

func execute(e *Engine, cmd coordinator.Command) {
	if err := e.dev.Execute(cmd); err != nil {
		e.logger.Error("script command failed", "err", err)
	}
}

// purifier.set_mode(name)
func purifierSetMode(L *lua.LState, e *Engine) int {
	name := L.CheckString(1)
	m, err := device.ParseFanMode(name)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	execute(e, coordinator.SetMode{Mode: m})
	return 0
}

// purifier.set_percentage(p)
func purifierSetPercentage(L *lua.LState, e *Engine) int {
	execute(e, coordinator.SetPercentage{Percentage: L.CheckInt(1)})
	return 0
}

// purifier.set_power(on)
func purifierSetPower(L *lua.LState, e *Engine) int {
	execute(e, coordinator.SetPower{On: L.CheckBool(1)})
	return 0
}

// purifier.set_brightness(level)
func purifierSetBrightness(L *lua.LState, e *Engine) int {
	execute(e, coordinator.SetBrightness{Level: L.CheckInt(1)})
	return 0
}

// purifier.state() returns a table with mode, percentage, brightness,
// auto and auto_percentage.
func purifierState(L *lua.LState, e *Engine) int {
	s := e.dev.State()
	t := L.NewTable()
	t.RawSetString("mode", lua.LString(s.Mode.String()))
	t.RawSetString("percentage", lua.LNumber(s.Percentage))
	t.RawSetString("brightness", lua.LNumber(s.Brightness))
	t.RawSetString("auto", lua.LBool(s.AutoModeActive))
	t.RawSetString("auto_percentage", lua.LNumber(s.CurrentAutoPercentage))
	L.Push(t)
	return 1
}

// purifier.after(seconds, callback)
func purifierAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}
		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()
	return 0
}

// purifier.log(msg)
func purifierLog(L *lua.LState, e *Engine) int {
	e.logger.Info("script log", "msg", L.CheckString(1))
	return 0
}
