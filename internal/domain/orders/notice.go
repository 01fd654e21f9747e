package orders

// Desk notices returned with the outcome of each mutating action.
const (
	MsgUnbilledUpdated = "Unbilled order updated successfully"
	MsgOrderMoved      = "Order moved to regular orders successfully"
	MsgMoveFailed      = "Failed to move order to regular orders"
	MsgUpdateFailed    = "Failed to update order"
	MsgOrderDeleted    = "Order deleted successfully"
	MsgDeleteFailed    = "Failed to delete the order"
	MsgBulkDeleted     = "Selected orders deleted successfully"
	MsgBulkFailed      = "Failed to delete some orders"
	MsgOrderCreated    = "Order created successfully"
)

// ActionError is a failed desk action. Notice is the message shown to the
// user; Err is the cause.
type ActionError struct {
	Notice      string
	MigrationID string
	Err         error
}

func (e *ActionError) Error() string {
	if e.Err == nil {
		return e.Notice
	}
	return e.Notice + ": " + e.Err.Error()
}

func (e *ActionError) Unwrap() error { return e.Err }
