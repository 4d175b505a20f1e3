// Package model defines the smart charging data model: charging profiles as
// they arrive on the wire, the periods derived from them and the composite
// schedule computed by the engine.
//
// Limits are carried as Limit values. The -1 "unlimited" sentinel only exists
// in the JSON encoding.
package model
