package orders

type Status string

// New orders always start PENDING; nothing moves them further yet.
const StatusPending Status = "PENDING"
