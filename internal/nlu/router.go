package nlu

// Route maps an intent and its entities to a [Request]. Each action intent
// copies a fixed subset of the entities; unresolved fields stay empty.
// [IntentGeneral] and any unrecognised intent produce [Unknown] carrying the
// raw input.
func Route(intent Intent, e Entities) Request {
	switch intent {
	case IntentTrainTiming:
		return NextTrainTime{Origin: e.Origin, Destination: e.Destination, Date: e.Date}
	case IntentTrainBetween:
		return TrainsBetween{Origin: e.Origin, Destination: e.Destination, Date: e.Date}
	case IntentTrainStatus:
		return TrainStatus{TrainNo: e.TrainNo, Date: e.Date}
	case IntentPNRStatus:
		return PNRStatus{PNR: e.PNR}
	case IntentRoute:
		return RouteInfo{TrainNo: e.TrainNo}
	case IntentFareQuery:
		return Fare{Origin: e.Origin, Destination: e.Destination, TrainNo: e.TrainNo}
	default:
		return Unknown{Intent: intent, Entities: e}
	}
}
