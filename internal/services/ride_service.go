package services

import (
	"context"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/observability"
	"ridehail/internal/realtime"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideService interface {
	RequestRide(ctx context.Context, req *models.RideRequest) (*models.Ride, error)
	AcceptRide(ctx context.Context, rideID, riderID primitive.ObjectID) (*models.Ride, error)
	UpdateStatus(ctx context.Context, rideID, riderID primitive.ObjectID, status models.RideStatus, location *models.Coordinates) (*models.Ride, error)
	RateRide(ctx context.Context, rideID primitive.ObjectID, actor models.Actor, rating float64, feedback string) (*models.Ride, error)

	GetRide(ctx context.Context, rideID primitive.ObjectID, actor models.Actor) (*models.Ride, error)
	GetAvailableRides(ctx context.Context, riderID primitive.ObjectID) ([]*models.Ride, error)
	GetUserHistory(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error)
	GetRiderHistory(ctx context.Context, riderID primitive.ObjectID) ([]*models.Ride, error)
}

type rideService struct {
	rideRepo  interfaces.RideRepository
	riderRepo interfaces.RiderRepository
	userRepo  interfaces.UserRepository
	router    *realtime.Router
	notifier  NotificationService
	fares     FareService
	logger    *logger.Logger
	timeout   time.Duration
	now       func() time.Time

	// one recompute at a time per rated party
	ratingLocks *keyedMutex
}

func NewRideService(
	rideRepo interfaces.RideRepository,
	riderRepo interfaces.RiderRepository,
	userRepo interfaces.UserRepository,
	router *realtime.Router,
	notifier NotificationService,
	fares FareService,
	log *logger.Logger,
	timeout time.Duration,
) RideService {
	if timeout <= 0 {
		timeout = utils.DefaultOperationTimeout
	}
	return &rideService{
		rideRepo:    rideRepo,
		riderRepo:   riderRepo,
		userRepo:    userRepo,
		router:      router,
		notifier:    notifier,
		fares:       fares,
		logger:      log.WithComponent("ride"),
		timeout:     timeout,
		now:         time.Now,
		ratingLocks: newKeyedMutex(),
	}
}

func (s *rideService) RequestRide(ctx context.Context, req *models.RideRequest) (*models.Ride, error) {
	if err := validators.Validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pref := req.PreferredRiderGender
	if pref == "" {
		pref = models.GenderPreferenceNone
	}
	method := req.PaymentMethod
	if method == "" {
		method = models.PaymentMethodCash
	}

	ride := &models.Ride{
		UserID:               req.UserID,
		PreferredRiderGender: pref,
		PickupLocation:       req.PickupLocation,
		DropoffLocation:      req.DropoffLocation,
		Status:               models.RideStatusRequested,
		RequestTime:          s.now(),
		PaymentMethod:        method,
		PaymentStatus:        models.PaymentStatusPending,
	}

	if req.Fare != nil {
		ride.Fare = *req.Fare
	} else {
		fare, route := s.fares.Estimate(ctx, req.PickupLocation.Coordinates, req.DropoffLocation.Coordinates)
		ride.Fare = *fare
		ride.Route = route
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, utils.AsAppError(err, "failed to create ride")
	}
	observability.RidesRequested.Inc()

	reached := s.router.OnRideCreated(ctx, ride)
	s.logger.LogRideEvent(ride.ID, "requested", map[string]interface{}{
		"user_id":    ride.UserID.Hex(),
		"preference": ride.PreferredRiderGender,
		"notified":   reached,
	})

	return ride, nil
}

func (s *rideService) AcceptRide(ctx context.Context, rideID, riderID primitive.ObjectID) (*models.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load ride")
	}
	rider, err := s.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load rider")
	}

	if ride.Status != models.RideStatusRequested || ride.IsAssigned() {
		observability.AcceptConflicts.Inc()
		return nil, utils.NewConflictError("ride cannot be accepted as it is currently %s", ride.Status)
	}
	if !riderMatchesPreference(rider.Gender, ride.PreferredRiderGender) {
		return nil, utils.NewForbiddenError("ride requested a %s rider", ride.PreferredRiderGender)
	}

	acceptedAt := s.now()
	applied, err := s.rideRepo.ConditionalUpdate(ctx, rideID,
		interfaces.RideCondition{Status: models.RideStatusRequested, RequireUnassigned: true},
		map[string]interface{}{
			models.RideFieldRiderID:    riderID,
			models.RideFieldStatus:     models.RideStatusAccepted,
			models.RideFieldAcceptTime: acceptedAt,
		},
	)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to accept ride")
	}
	if !applied {
		observability.AcceptConflicts.Inc()
		return nil, utils.NewConflictError("ride was accepted by another rider")
	}
	observability.RideTransitions.WithLabelValues(string(models.RideStatusRequested), string(models.RideStatusAccepted)).Inc()

	ride.RiderID = &riderID
	ride.Status = models.RideStatusAccepted
	ride.AcceptTime = &acceptedAt

	s.router.OnRideAccepted(ctx, ride, rider)
	s.notifier.NotifyUser(ctx, ride.UserID, titleRideAccepted, bodyRideAccepted, map[string]string{"rideId": ride.ID.Hex()})
	s.logger.LogRideEvent(ride.ID, "accepted", map[string]interface{}{"rider_id": riderID.Hex()})

	return ride, nil
}

func (s *rideService) UpdateStatus(ctx context.Context, rideID, riderID primitive.ObjectID, status models.RideStatus, location *models.Coordinates) (*models.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load ride")
	}
	if !ride.AssignedTo(riderID) {
		return nil, utils.NewForbiddenError("not authorized to update this ride")
	}
	if !models.CanTransition(ride.Status, status) {
		return nil, utils.NewInvalidTransitionError(string(ride.Status), string(status))
	}

	from := ride.Status
	now := s.now()
	updates := map[string]interface{}{models.RideFieldStatus: status}
	switch status {
	case models.RideStatusInProgress:
		updates[models.RideFieldPickupTime] = now
	case models.RideStatusCompleted:
		updates[models.RideFieldDropoffTime] = now
	}

	applied, err := s.rideRepo.ConditionalUpdate(ctx, rideID,
		interfaces.RideCondition{Status: from, RiderID: &riderID},
		updates,
	)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to update ride status")
	}
	if !applied {
		return nil, utils.NewConflictError("ride status changed concurrently")
	}
	observability.RideTransitions.WithLabelValues(string(from), string(status)).Inc()

	ride.Status = status
	switch status {
	case models.RideStatusInProgress:
		ride.PickupTime = &now
	case models.RideStatusCompleted:
		ride.DropoffTime = &now
	}

	s.router.OnStatusUpdate(ctx, ride.ID, status, location)
	title, body := statusNotification(status)
	s.notifier.NotifyUser(ctx, ride.UserID, title, body, map[string]string{"rideId": ride.ID.Hex()})
	s.logger.LogRideEvent(ride.ID, "status_changed", map[string]interface{}{"from": from, "to": status})

	return ride, nil
}

// RateRide stores the rating on the ride and then recomputes the rated
// party's average from every rated ride in storage. The stored rating is the
// result; a failed recompute is logged and repaired by the next one, since
// the average is always rebuilt from history.
func (s *rideService) RateRide(ctx context.Context, rideID primitive.ObjectID, actor models.Actor, rating float64, feedback string) (*models.Ride, error) {
	if err := validators.Validate(&validators.RateRideRequest{Rating: rating, Feedback: feedback}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load ride")
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, utils.NewConflictError("can only rate completed rides")
	}

	updates := map[string]interface{}{}
	switch {
	case actor.Kind == models.ActorKindUser && ride.UserID == actor.ID:
		updates[models.RideFieldRiderRating] = rating
		updates[models.RideFieldRiderFeedback] = feedback
	case actor.Kind == models.ActorKindRider && ride.AssignedTo(actor.ID):
		updates[models.RideFieldUserRating] = rating
		updates[models.RideFieldUserFeedback] = feedback
	default:
		return nil, utils.NewForbiddenError("not authorized to rate this ride")
	}

	applied, err := s.rideRepo.ConditionalUpdate(ctx, rideID, interfaces.RideCondition{Status: models.RideStatusCompleted}, updates)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to store rating")
	}
	if !applied {
		return nil, utils.NewConflictError("can only rate completed rides")
	}

	if actor.Kind == models.ActorKindUser {
		ride.RiderRating = &rating
		ride.RiderFeedback = feedback
		err = s.recomputeRiderRating(ctx, *ride.RiderID)
	} else {
		ride.UserRating = &rating
		ride.UserFeedback = feedback
		err = s.recomputeUserRating(ctx, ride.UserID)
	}
	if err != nil {
		s.logger.WithRideID(rideID).WithError(err).Warn("Rating stored but average rating not refreshed")
	}

	return ride, nil
}

func (s *rideService) recomputeRiderRating(ctx context.Context, riderID primitive.ObjectID) error {
	unlock := s.ratingLocks.Lock(riderID)
	defer unlock()

	rides, err := s.rideRepo.Find(ctx, interfaces.RideFilter{RiderID: &riderID, HasRiderRating: true})
	if err != nil {
		return err
	}
	values := make([]float64, 0, len(rides))
	for _, r := range rides {
		values = append(values, *r.RiderRating)
	}
	return s.riderRepo.UpdateRating(ctx, riderID, mean(values))
}

func (s *rideService) recomputeUserRating(ctx context.Context, userID primitive.ObjectID) error {
	unlock := s.ratingLocks.Lock(userID)
	defer unlock()

	rides, err := s.rideRepo.Find(ctx, interfaces.RideFilter{UserID: &userID, HasUserRating: true})
	if err != nil {
		return err
	}
	values := make([]float64, 0, len(rides))
	for _, r := range rides {
		values = append(values, *r.UserRating)
	}
	return s.userRepo.UpdateRating(ctx, userID, mean(values))
}

func (s *rideService) GetRide(ctx context.Context, rideID primitive.ObjectID, actor models.Actor) (*models.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load ride")
	}

	switch actor.Kind {
	case models.ActorKindAdmin:
		return ride, nil
	case models.ActorKindUser:
		if ride.UserID == actor.ID {
			return ride, nil
		}
	case models.ActorKindRider:
		if ride.AssignedTo(actor.ID) || (ride.Status == models.RideStatusRequested && !ride.IsAssigned()) {
			return ride, nil
		}
	}
	return nil, utils.NewForbiddenError("not authorized to view this ride")
}

// GetAvailableRides lists open requests the rider may accept.
func (s *rideService) GetAvailableRides(ctx context.Context, riderID primitive.ObjectID) ([]*models.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rider, err := s.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load rider")
	}

	prefs := []models.GenderPreference{models.GenderPreferenceNone}
	if p := models.GenderPreference(rider.Gender); p.IsValid() && p != models.GenderPreferenceNone {
		prefs = append(prefs, p)
	}

	rides, err := s.rideRepo.Find(ctx, interfaces.RideFilter{
		Statuses:         []models.RideStatus{models.RideStatusRequested},
		Unassigned:       true,
		PreferredGenders: prefs,
	})
	if err != nil {
		return nil, utils.AsAppError(err, "failed to list available rides")
	}
	return rides, nil
}

func (s *rideService) GetUserHistory(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rides, err := s.rideRepo.Find(ctx, interfaces.RideFilter{UserID: &userID})
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load ride history")
	}
	return rides, nil
}

func (s *rideService) GetRiderHistory(ctx context.Context, riderID primitive.ObjectID) ([]*models.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rides, err := s.rideRepo.Find(ctx, interfaces.RideFilter{RiderID: &riderID})
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load ride history")
	}
	return rides, nil
}

func riderMatchesPreference(gender models.Gender, pref models.GenderPreference) bool {
	switch pref {
	case models.GenderPreferenceMale:
		return gender == models.GenderMale
	case models.GenderPreferenceFemale:
		return gender == models.GenderFemale
	default:
		return true
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
