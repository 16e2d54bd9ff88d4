package handlers

import (
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
	"github.com/Proton-105/homebox-bot/internal/workflow"
)

var actionEvents = map[workflow.Action]workflow.Event{
	workflow.ActionEditName:        workflow.EditName{},
	workflow.ActionEditDescription: workflow.EditDescription{},
	workflow.ActionChangeLocation:  workflow.ChangeLocation{},
	workflow.ActionReanalyze:       workflow.Reanalyze{},
	workflow.ActionRetryAnalysis:   workflow.RetryAnalysis{},
	workflow.ActionConfirm:         workflow.Confirm{},
	workflow.ActionCancel:          workflow.Cancel{},
	workflow.ActionBack:            workflow.Back{},
	workflow.ActionMarkMode:        workflow.MarkMode{},
	workflow.ActionMarkAll:         workflow.MarkPage{Marked: true},
	workflow.ActionUnmarkAll:       workflow.MarkPage{Marked: false},
	workflow.ActionAccept:          workflow.AcceptDescription{},
	workflow.ActionRegenerate:      workflow.RegenerateDescription{},
	workflow.ActionReject:          workflow.RejectDescription{},
	workflow.ActionMoveItem:        workflow.MoveItem{},
	workflow.ActionClose:           workflow.Close{},
}

// CallbackEvent maps inline button data produced by the keyboard package to a workflow event.
func CallbackEvent(data string) (workflow.Event, bool) {
	unique, payload, err := keyboard.DecodeCallback(data)
	if err != nil {
		return nil, false
	}

	switch unique {
	case keyboard.UniqueAction:
		ev, ok := actionEvents[workflow.Action(payload)]
		return ev, ok
	case keyboard.UniquePage:
		page, err := strconv.Atoi(payload)
		if err != nil {
			return nil, false
		}
		return workflow.GoToPage{Page: page - 1}, true
	case keyboard.UniquePickLocation:
		return workflow.PickLocation{LocationID: payload}, payload != ""
	case keyboard.UniqueToggleMarker:
		return workflow.ToggleMarker{LocationID: payload}, payload != ""
	case keyboard.UniqueDescribe:
		return workflow.DescribeLocation{LocationID: payload}, payload != ""
	case keyboard.UniqueItem:
		return workflow.ShowItem{ItemID: payload}, payload != ""
	}

	return nil, false
}

// NewFlowCallbackHandler forwards workflow buttons.
func NewFlowCallbackHandler(d Dispatcher) CallbackHandler {
	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			return nil
		}

		ev, ok := CallbackEvent(cb.Data)
		if !ok {
			return respondCallback(c, T(c).T("notice.unavailable_action"), false)
		}

		_ = respondCallback(c, "", false)
		return d.Dispatch(c, ev)
	}
}
