package entity

// Action задаёт именованную операцию над заданием.
type Action string

const (
	ActionPublish Action = "publish"
	ActionAccept  Action = "accept"
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionDispute Action = "dispute"
	ActionResolve Action = "resolve"
	ActionCancel  Action = "cancel"
	ActionRefund  Action = "refund"
	ActionExpire  Action = "expire"
)

// ChainActions перечисляет операции, которые подтверждаются транзакцией в сети.
var ChainActions = []Action{
	ActionPublish,
	ActionAccept,
	ActionSubmit,
	ActionApprove,
	ActionDispute,
	ActionResolve,
	ActionCancel,
	ActionRefund,
}

func (a Action) IsChainGated() bool {
	for _, ca := range ChainActions {
		if ca == a {
			return true
		}
	}
	return false
}

// LedgerKind возвращает тип записи журнала, которую оставляет операция.
func (a Action) LedgerKind() LedgerKind {
	switch a {
	case ActionPublish:
		return LedgerKindFund
	case ActionAccept:
		return LedgerKindAccept
	case ActionSubmit:
		return LedgerKindSubmit
	case ActionApprove:
		return LedgerKindRelease
	case ActionDispute:
		return LedgerKindDispute
	case ActionResolve:
		return LedgerKindDisputeResolution
	case ActionCancel:
		return LedgerKindCancelRefund
	case ActionRefund:
		return LedgerKindRefund
	}
	return ""
}

func ParseAction(s string) (Action, bool) {
	a := Action(s)
	if a.IsChainGated() {
		return a, true
	}
	return "", false
}
