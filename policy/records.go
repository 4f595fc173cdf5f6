package policy

const (
	ActionRecordDelete = "record.delete"
)

// RecordPolicy governs mutations of memories and condolences. The author of a
// record and administrators may delete it; everybody else is denied by default.
var RecordPolicy = PolicyDocument{
	Name:        "memorial.records",
	Description: "record ownership",
	Versions: map[string]Policy{
		Version: {
			Statements: map[string][]Stmt{
				ActionRecordDelete: {
					{
						Emit: "allow",
						Condition: Op("Or",
							Op("Eq", Load("requester.id"), Load("this.userId")),
							Op("Eq", Load("requester.isAdmin"), Const(true)),
						),
					},
				},
			},
			Defaults: map[string]bool{
				ActionRecordDelete: false,
			},
		},
	},
}

// RecordContext is the evaluation context for a requester acting on a record
// authored by ownerID.
func RecordContext(requesterID string, isAdmin bool, ownerID string) RequestContext {
	return RequestContext{
		Requester: map[string]any{
			"id":      requesterID,
			"isAdmin": isAdmin,
		},
		This: map[string]any{
			"userId": ownerID,
		},
	}
}
